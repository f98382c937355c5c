package mzml

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteReadBack(t *testing.T) {
	f := New("roundtrip")
	spectra := [][]Peak{
		{{Mz: 150.0101, Intens: 1234.5}, {Mz: 300.02, Intens: 1e7}},
		{},
		{{Mz: 949.999, Intens: 0.25}},
	}
	for i, p := range spectra {
		idx, err := f.AppendSpectrum(float64(i)*0.2, 1, true, p)
		if err != nil {
			t.Fatalf("AppendSpectrum: error return %v", err)
		}
		if idx != i {
			t.Errorf("AppendSpectrum: index %d, should be %d", idx, i)
		}
	}
	f.AppendSoftwareInfo("lcmsdiff", "test")
	f.AppendDataProcessing(DataProcessing{
		ID: "lcmsdiff",
		ProcessingMeth: []ProcessingMethod{
			{SoftwareRef: "lcmsdiff", CvPar: []CVParam{{Accession: `MS:1000035`, Name: `peak picking`}}},
		},
	})

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: error return %v", err)
	}
	g, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: error return %v", err)
	}
	if g.NumSpecs() != len(spectra) {
		t.Fatalf("NumSpecs: %d, should be %d", g.NumSpecs(), len(spectra))
	}
	for i, want := range spectra {
		got, err := g.ReadScan(i)
		if err != nil {
			t.Fatalf("ReadScan(%d): error return %v", i, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ReadScan(%d) mismatch (-want +got):\n%s", i, diff)
		}
		rt, err := g.RetentionTime(i)
		if err != nil {
			t.Errorf("RetentionTime(%d): error return %v", i, err)
		}
		if rt != float64(i)*0.2 {
			t.Errorf("RetentionTime(%d): %f, should be %f", i, rt, float64(i)*0.2)
		}
		centroid, _ := g.Centroid(i)
		if !centroid {
			t.Errorf("Centroid(%d): false, should be true", i)
		}
		var tic float64
		for _, peak := range want {
			tic += peak.Intens
		}
		if got, _ := g.TotalIonCurrent(i); got != tic {
			t.Errorf("TotalIonCurrent(%d): %f, should be %f", i, got, tic)
		}
	}
	id, err := g.ScanID(2)
	if err != nil || id != "scan=3" {
		t.Errorf("ScanID: %s (%v), should be scan=3", id, err)
	}
	if g.content.SoftwareList == nil || g.content.SoftwareList.Count != 1 {
		t.Errorf("SoftwareList not written: %+v", g.content.SoftwareList)
	}
	if g.content.DataProcessingList == nil || len(g.content.DataProcessingList.DataProcessingd) != 1 {
		t.Errorf("DataProcessingList not written: %+v", g.content.DataProcessingList)
	}

	// Check if after another iteration, the file stays the same
	var buf2, buf3 bytes.Buffer
	if err := g.Write(&buf2); err != nil {
		t.Fatalf("Write: error return %v", err)
	}
	h, err := Read(bytes.NewReader(buf2.Bytes()))
	if err != nil {
		t.Fatalf("Read: error return %v", err)
	}
	if err := h.Write(&buf3); err != nil {
		t.Fatalf("Write: error return %v", err)
	}
	if !bytes.Equal(buf2.Bytes(), buf3.Bytes()) {
		t.Errorf("Output different after 2 consecutive read/writes")
	}
}

func TestUpdateScan(t *testing.T) {
	f, err := Read(strings.NewReader(handMadeMzML(t, false)))
	if err != nil {
		t.Fatalf("Read: error return %v", err)
	}
	// Spectrum 0 is stored as uncompressed 32-bit floats, which can't hold
	// these values exactly. After the update they are 64-bit.
	want := []Peak{{Mz: 100.123456789, Intens: 1.5}, {Mz: 150.000001, Intens: 2.25}, {Mz: 300.1, Intens: 4}}
	if err := f.UpdateScan(0, want); err != nil {
		t.Fatalf("UpdateScan: error return %v", err)
	}
	if err := f.UpdateScan(1, nil); err != nil {
		t.Fatalf("UpdateScan: error return %v", err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: error return %v", err)
	}
	g, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: error return %v", err)
	}
	got, err := g.ReadScan(0)
	if err != nil {
		t.Fatalf("ReadScan: error return %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadScan mismatch (-want +got):\n%s", diff)
	}
	if tic, _ := g.TotalIonCurrent(0); tic != 7.75 {
		t.Errorf("TotalIonCurrent: %f, should be 7.75", tic)
	}
	// Spectrum 1 has no total ion current, and gets none
	if tic, _ := g.TotalIonCurrent(1); !math.IsNaN(tic) {
		t.Errorf("TotalIonCurrent: %f, should be NaN", tic)
	}
	if p, _ := g.ReadScan(1); len(p) != 0 {
		t.Errorf("ReadScan: %d peaks, should be 0", len(p))
	}
	for _, i := range []int{-1, 2} {
		if err := f.UpdateScan(i, want); err != ErrInvalidScanIndex {
			t.Errorf("UpdateScan(%d): error return %v, should be ErrInvalidScanIndex", i, err)
		}
	}
}
