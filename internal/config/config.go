// Package config reads HCL run files. A run file may set any command line
// parameter, for example:
//
//	lcms_directory  = "gs://bucket/plate1"
//	experimental    = ["exp1", "exp2"]
//	control         = ["ctrl1"]
//	output_directory = "out"
//	encoding_size   = 12
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// RunFile holds the parameters found in a run file. Unset attributes are
// nil.
type RunFile struct {
	LcmsDirectory         *string  `hcl:"lcms_directory,optional"`
	Experimental          []string `hcl:"experimental,optional"`
	Control               []string `hcl:"control,optional"`
	OutputDirectory       *string  `hcl:"output_directory,optional"`
	PreviousModelLocation *string  `hcl:"previous_model_location,optional"`
	EncodingSize          *int     `hcl:"encoding_size,optional"`
	ClusterNumber         *int     `hcl:"cluster_number,optional"`
	MzMin                 *float64 `hcl:"mz_min,optional"`
	MzMax                 *float64 `hcl:"mz_max,optional"`
	MzBin                 *float64 `hcl:"mz_bin,optional"`
	RT                    *string  `hcl:"rt,optional"`
	RTInterval            *float64 `hcl:"rt_interval,optional"`
	Threshold             *float64 `hcl:"threshold,optional"`
	Epochs                *int     `hcl:"epochs,optional"`
	BatchSize             *int     `hcl:"batch_size,optional"`
	LearningRate          *float64 `hcl:"learning_rate,optional"`
	Seed                  *int     `hcl:"seed,optional"`
}

// Load parses the run file at path
func Load(path string) (*RunFile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse run file %s: %w", path, diags)
	}
	var rf RunFile
	diags = gohcl.DecodeBody(file.Body, nil, &rf)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode run file %s: %w", path, diags)
	}
	return &rf, nil
}
