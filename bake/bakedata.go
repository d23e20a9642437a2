// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package bake

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/smartens/q2re/linear"
)

// BakingData is the result of a completed bake run: which clusters it
// covers, the prefix-sum cluster-to-probe index, and the flat probe
// array.
type BakingData struct {
	Mode          Mode
	BakingCluster int // valid only when Mode == CurrentPositionCluster

	// ClusterFirstProbeIndices[c] is the index of cluster c's first
	// probe in Probes; ClusterFirstProbeIndices[c+1]-...[c] is the
	// number of probes in cluster c. Populated only for AllClusters.
	ClusterFirstProbeIndices []int

	Probes []Probe

	// IsContainCompleteBakingResult is set once every selected
	// cluster has finished baking.
	IsContainCompleteBakingResult bool
}

// Save serializes d to path in the textual baked-data format. A
// completed bake is not lost if Save fails — the caller still holds d
// in memory — so failures are logged rather than treated as fatal to
// the bake run itself.
func (d *BakingData) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		err = newBakeErrCause(ErrBakingDataIoError, "create "+path, err)
		logger.Sugar().Warnw("baked-data save failed", "path", path, "error", err)
		return err
	}
	defer f.Close()
	if err := d.Encode(f); err != nil {
		logger.Sugar().Warnw("baked-data save failed", "path", path, "error", err)
		return err
	}
	return nil
}

// Encode writes d's textual representation to w.
func (d *BakingData) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)

	switch d.Mode {
	case AllClusters:
		fmt.Fprintln(bw, "BakingMode AllClusters")
		fmt.Fprintln(bw, "ClusterFirstProbeIndices", len(d.ClusterFirstProbeIndices))
		for _, idx := range d.ClusterFirstProbeIndices {
			fmt.Fprintln(bw, idx)
		}
	case CurrentPositionCluster:
		fmt.Fprintln(bw, "BakingMode CurrentPositionCluster")
		fmt.Fprintln(bw, "BakingCluster", d.BakingCluster)
	}

	fmt.Fprintln(bw, "ProbeData", len(d.Probes))
	for i, p := range d.Probes {
		fmt.Fprintln(bw, "Probe", i)
		for _, c := range p.SH {
			fmt.Fprintf(bw, "%g,%g,%g\n", c[0], c[1], c[2])
		}
	}
	return bw.Flush()
}

// LoadBakingData reads and parses a textual baked-data file.
func LoadBakingData(path string) (BakingData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BakingData{}, newBakeErrCause(ErrBakingDataIoError, "read "+path, err)
	}
	return DecodeBakingData(string(data))
}

// DecodeBakingData parses the textual baked-data format produced by
// Encode.
func DecodeBakingData(src string) (BakingData, error) {
	var d BakingData
	lines := strings.Split(src, "\n")
	i := 0
	next := func() (string, bool) {
		for i < len(lines) {
			l := strings.TrimSpace(lines[i])
			i++
			if l != "" {
				return l, true
			}
		}
		return "", false
	}

	line, ok := next()
	if !ok {
		return d, newBakeErrCause(ErrBakingDataIoError, "empty baked-data file", io.ErrUnexpectedEOF)
	}
	fields := strings.Fields(line)
	if len(fields) != 2 || fields[0] != "BakingMode" {
		return d, newBakeErr(ErrBakingDataIoError, "expected BakingMode header, got "+line)
	}
	switch fields[1] {
	case "AllClusters":
		d.Mode = AllClusters
	case "CurrentPositionCluster":
		d.Mode = CurrentPositionCluster
	default:
		return d, newBakeErr(ErrBakingDataIoError, "unknown BakingMode "+fields[1])
	}

	line, ok = next()
	if !ok {
		return d, newBakeErr(ErrBakingDataIoError, "truncated baked-data file")
	}
	fields = strings.Fields(line)

	if d.Mode == CurrentPositionCluster {
		if len(fields) != 2 || fields[0] != "BakingCluster" {
			return d, newBakeErr(ErrBakingDataIoError, "expected BakingCluster, got "+line)
		}
		cluster, err := strconv.Atoi(fields[1])
		if err != nil {
			return d, newBakeErrCause(ErrBakingDataIoError, "parse BakingCluster", err)
		}
		d.BakingCluster = cluster
		line, ok = next()
		if !ok {
			return d, newBakeErr(ErrBakingDataIoError, "truncated baked-data file")
		}
		fields = strings.Fields(line)
	} else {
		if len(fields) != 2 || fields[0] != "ClusterFirstProbeIndices" {
			return d, newBakeErr(ErrBakingDataIoError, "expected ClusterFirstProbeIndices, got "+line)
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return d, newBakeErrCause(ErrBakingDataIoError, "parse ClusterFirstProbeIndices count", err)
		}
		d.ClusterFirstProbeIndices = make([]int, n)
		for j := 0; j < n; j++ {
			l, ok := next()
			if !ok {
				return d, newBakeErr(ErrBakingDataIoError, "truncated ClusterFirstProbeIndices")
			}
			v, err := strconv.Atoi(strings.TrimSpace(l))
			if err != nil {
				return d, newBakeErrCause(ErrBakingDataIoError, "parse cluster index", err)
			}
			d.ClusterFirstProbeIndices[j] = v
		}
		line, ok = next()
		if !ok {
			return d, newBakeErr(ErrBakingDataIoError, "truncated baked-data file")
		}
		fields = strings.Fields(line)
	}

	if len(fields) != 2 || fields[0] != "ProbeData" {
		return d, newBakeErr(ErrBakingDataIoError, "expected ProbeData, got "+strings.Join(fields, " "))
	}
	nprobes, err := strconv.Atoi(fields[1])
	if err != nil {
		return d, newBakeErrCause(ErrBakingDataIoError, "parse ProbeData count", err)
	}

	d.Probes = make([]Probe, nprobes)
	for p := 0; p < nprobes; p++ {
		header, ok := next()
		if !ok {
			return d, newBakeErr(ErrBakingDataIoError, "truncated probe data")
		}
		hf := strings.Fields(header)
		if len(hf) != 2 || hf[0] != "Probe" {
			return d, newBakeErr(ErrBakingDataIoError, "expected Probe header, got "+header)
		}
		for c := 0; c < SH9Coeffs; c++ {
			l, ok := next()
			if !ok {
				return d, newBakeErr(ErrBakingDataIoError, "truncated SH coefficient data")
			}
			parts := strings.Split(strings.TrimSpace(l), ",")
			if len(parts) != 3 {
				return d, newBakeErr(ErrBakingDataIoError, "malformed coefficient line "+l)
			}
			var rgb linear.V3
			for k, s := range parts {
				v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
				if err != nil {
					return d, newBakeErrCause(ErrBakingDataIoError, "parse coefficient", err)
				}
				rgb[k] = float32(v)
			}
			d.Probes[p].SH[c] = rgb
		}
	}
	d.IsContainCompleteBakingResult = true
	return d, nil
}
