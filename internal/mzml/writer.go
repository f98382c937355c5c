package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
)

const cvListXML = `
  <cv id="MS" fullName="Proteomics Standards Initiative Mass Spectrometry Ontology" URI="https://raw.githubusercontent.com/HUPO-PSI/psi-ms-CV/master/psi-ms.obo"/>
  <cv id="UO" fullName="Unit Ontology" URI="https://raw.githubusercontent.com/bio-ontology-research-group/unit-ontology/master/unit.obo"/>
 `

const instrumentConfigurationXML = `
  <instrumentConfiguration id="IC1">
   <cvParam cvRef="MS" accession="MS:1000031" name="instrument model"/>
  </instrumentConfiguration>
 `

// New creates an empty mzML document with the given run id. Spectra are
// added with AppendSpectrum.
func New(runID string) MzML {
	var f MzML
	f.content.CvList = cvList{Count: 2, CvListXML: []byte(cvListXML)}
	f.content.FileDescription.FileDescriptionXML = `
  <fileContent>
   <cvParam cvRef="MS" accession="MS:1000579" name="MS1 spectrum"/>
  </fileContent>
 `
	f.content.SoftwareList = &softwareList{}
	f.content.InstrumentConfigurationList = &instrumentConfigurationList{
		Count:                          1,
		InstrumentConfigurationListXML: []byte(instrumentConfigurationXML),
	}
	f.content.DataProcessingList = &dataProcessingList{}
	f.content.Run.ID = runID
	f.content.Run.DefaultInstrumentConfigurationRef = "IC1"
	return f
}

// AppendSpectrum adds a spectrum with the given retention time (seconds)
// and peaks. Peak arrays are stored as zlib compressed 64-bit floats.
// The index of the new spectrum is returned.
func (f *MzML) AppendSpectrum(rt float64, msLevel int, centroid bool,
	p []Peak) (int, error) {
	index := f.NumSpecs()
	spectrumType := CVParam{Accession: `MS:1000128`, Name: `profile spectrum`}
	if centroid {
		spectrumType = CVParam{Accession: `MS:1000127`, Name: `centroid spectrum`}
	}
	spec := spectrum{
		Index: index,
		ID:    fmt.Sprintf("scan=%d", index+1),
		CvPar: []CVParam{
			{Accession: `MS:1000511`, Name: `ms level`, Value: strconv.Itoa(msLevel)},
			spectrumType,
			{Accession: `MS:1000285`, Name: `total ion current`},
		},
		ScanList: scanList{
			Count: 1,
			Scan: []scan{{
				CvPar: []CVParam{{
					Accession:     `MS:1000016`,
					Name:          `scan start time`,
					Value:         strconv.FormatFloat(rt, 'f', -1, 64),
					UnitCvRef:     `UO`,
					UnitAccession: `UO:0000010`,
					UnitName:      `second`,
				}},
			}},
		},
	}
	if err := setPeaks(&spec, p); err != nil {
		return 0, err
	}

	f.content.Run.SpectrumList.Spectrum = append(f.content.Run.SpectrumList.Spectrum, spec)
	f.content.Run.SpectrumList.Count = f.NumSpecs()
	f.index2id = append(f.index2id, spec.ID)
	return index, nil
}

// UpdateScan replaces the peaks of a spectrum. The new peaks are stored as
// zlib compressed 64-bit floats, whatever the encoding of the old ones, and
// the total ion current is updated if the spectrum has one.
func (f *MzML) UpdateScan(scanIndex int, p []Peak) error {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return ErrInvalidScanIndex
	}
	return setPeaks(&f.content.Run.SpectrumList.Spectrum[scanIndex], p)
}

func setPeaks(spec *spectrum, p []Peak) error {
	var tic float64
	for _, peak := range p {
		tic += peak.Intens
	}
	for i := range spec.CvPar {
		if spec.CvPar[i].Accession == `MS:1000285` { // total ion current
			spec.CvPar[i].Value = strconv.FormatFloat(tic, 'g', -1, 64)
		}
	}
	var arrays []binaryDataArray
	for _, mzArray := range []bool{true, false} {
		b64, err := encodeBinary(p, mzArray)
		if err != nil {
			return err
		}
		arrayType := CVParam{Accession: `MS:1000515`, Name: `intensity array`}
		if mzArray {
			arrayType = CVParam{Accession: `MS:1000514`, Name: `m/z array`}
		}
		arrays = append(arrays, binaryDataArray{
			EncodedLength: len(b64),
			ArrayLength:   len(p),
			CvPar: []CVParam{
				{Accession: `MS:1000523`, Name: `64-bit float`},
				{Accession: `MS:1000574`, Name: `zlib compression`},
				arrayType,
			},
			Binary: b64,
		})
	}
	spec.DefaultArrayLength = int64(len(p))
	spec.BinaryDataArrayList = binaryDataArrayList{
		Count:           len(arrays),
		BinaryDataArray: arrays,
	}
	return nil
}

func (f *MzML) Write(writer io.Writer) error {
	if _, err := writer.Write(([]byte)(
		`<?xml version="1.0" encoding="utf-8"?>
`)); err != nil {
		return err
	}
	enc := xml.NewEncoder(writer)
	// FIXME: We want readable XML, with XML tags starting on a new line.
	// GO's Encode doesn't always insert newlines, and using
	// Indent only works if the indent string is not empty,
	// resuling in a single space indent.
	enc.Indent(` `, `  `)
	var content mzMLContentWrite

	content.XMLName = f.content.XMLName
	content.XMLName.Space = "http://psi.hupo.org/ms/mzml"
	content.XMLName.Local = "mzML"
	content.Sl1 = "http://psi.hupo.org/ms/mzml http://psidev.info/files/ms/mzML/xsd/mzML1.1.0.xsd"
	content.Version = "1.1.0"
	content.Sl2 = "http://www.w3.org/2001/XMLSchema-instance"
	content.CvList = f.content.CvList
	content.FileDescription = f.content.FileDescription
	content.ReferenceableParamGroupList = f.content.ReferenceableParamGroupList
	content.SoftwareList = f.content.SoftwareList
	content.InstrumentConfigurationList = f.content.InstrumentConfigurationList
	content.DataProcessingList = f.content.DataProcessingList
	content.Run = f.content.Run

	return enc.Encode(&content)
}

// AppendSoftwareInfo adds info to the SoftwareList tag of the mzML file
func (f *MzML) AppendSoftwareInfo(id string, version string) {
	if f.content.SoftwareList == nil {
		f.content.SoftwareList = &softwareList{}
	}
	f.content.SoftwareList.Count++
	f.content.SoftwareList.Software = append(f.content.SoftwareList.Software,
		software{ID: id, Version: version})
}

// AppendDataProcessing adds info to the DataProcessing tag of the mzML file
func (f *MzML) AppendDataProcessing(proc DataProcessing) {
	if f.content.DataProcessingList == nil {
		f.content.DataProcessingList = &dataProcessingList{}
	}
	f.content.DataProcessingList.Count++
	f.content.DataProcessingList.DataProcessingd = append(f.content.DataProcessingList.DataProcessingd, proc)
}

// encodeBinary returns the m/z or intensity values of the peaks as base64
// encoded, zlib compressed, little endian 64-bit floats
func encodeBinary(p []Peak, mzArray bool) (string, error) {
	raw := make([]byte, len(p)*8)
	for i, peak := range p {
		v := peak.Intens
		if mzArray {
			v = peak.Mz
		}
		binary.LittleEndian.PutUint64(raw[(8*i):], math.Float64bits(v))
	}
	var b bytes.Buffer
	z := zlib.NewWriter(&b)
	if _, err := z.Write(raw); err != nil {
		return "", err
	}
	// zlib writer must explicitly be closed here, otherwise result is invalid
	if err := z.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b.Bytes()), nil
}
