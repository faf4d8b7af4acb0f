/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/ncstitch/InputParameters"
	"github.com/notargets/ncstitch/fields"
	"github.com/notargets/ncstitch/mesh"
	"github.com/notargets/ncstitch/stitcher"
	"github.com/notargets/ncstitch/types"
)

const exampleFile = `
########################################
Title: "Half offset"
Geometric: true
Motion: static # Can be "moving"
IntersectionWorkers: 1 # Goroutines sharing the intersection
Owner:
  Size: [1, 1, 1]
  Cells: [1, 1, 2]
Neighbour:
  Origin: [1, 0.5, 0]
  Size: [1, 1, 1]
  Cells: [1, 1, 2]
Displacement: [0, -0.1, 0] # Neighbour motion per step
Steps: 0
########################################
`

// StitchCmd represents the stitch command
var StitchCmd = &cobra.Command{
	Use:   "stitch",
	Short: "Connect the non-conformal interface of a two block case",
	Long: `Builds two hexahedral blocks that meet non-conformally, connects their interface
and reports the couples, the transferred and remaining area and the cell openness.
With Steps > 0 the neighbour block is moved and the interface reconnected each step.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var icFile string
		if icFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			panic(err)
		}
		if len(icFile) == 0 {
			fmt.Printf("Example File:%s\n", exampleFile)
			return fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile)")
		}
		if viper.GetBool("profile") {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		var logger *zap.Logger
		if viper.GetBool("verbose") {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return
		}
		defer func() { _ = logger.Sync() }()
		stitcher.SetLogger(logger)
		var ip *InputParameters.StitchParameters
		if ip, err = readInput(icFile); err != nil {
			return
		}
		ip.Print()
		return RunStitch(cmd.OutOrStdout(), ip)
	},
}

func init() {
	rootCmd.AddCommand(StitchCmd)
	StitchCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for the case: blocks, stitcher constants and motion")
}

func readInput(icFile string) (ip *InputParameters.StitchParameters, err error) {
	var data []byte
	if data, err = os.ReadFile(icFile); err != nil {
		return
	}
	ip = &InputParameters.StitchParameters{}
	if err = ip.Parse(data); err != nil {
		return nil, fmt.Errorf("reading %s: %w", icFile, err)
	}
	if err = ip.Validate(); err != nil {
		return nil, err
	}
	return
}

// RunStitch builds the case, connects it and reports on each motion step
func RunStitch(w io.Writer, ip *InputParameters.StitchParameters) (err error) {
	var (
		m   *mesh.Mesh
		cfg stitcher.Config
		s   *stitcher.Stitcher
	)
	if cfg, err = ip.Config(); err != nil {
		return
	}
	if m, err = mesh.NewTwoBlockMesh(ip.Owner.Block(), ip.Neighbour.Block()); err != nil {
		return
	}
	m.PrintStatistics()
	if s, err = stitcher.New(m, ip.Moving(), cfg); err != nil {
		return
	}
	if s.Changing() {
		if err = s.SetMeshPhi(fields.NewScalarField("meshPhi", types.Extensive, s.Layout())); err != nil {
			return
		}
	}
	if _, err = s.Connect(ip.Geometric); err != nil {
		return
	}
	report(w, 0, s)
	var (
		c            = ip.Owner.Cells
		nOwnerPoints = (c[0] + 1) * (c[1] + 1) * (c[2] + 1)
		d            = r3.Vec{X: ip.Displacement[0], Y: ip.Displacement[1], Z: ip.Displacement[2]}
	)
	for step := 1; step <= ip.Steps; step++ {
		points := append([]r3.Vec(nil), m.Points...)
		for i := nOwnerPoints; i < len(points); i++ {
			points[i] = r3.Add(points[i], d)
		}
		if err = s.MovePoints(points); err != nil {
			return
		}
		report(w, step, s)
	}
	return
}

func report(w io.Writer, step int, s *stitcher.Stitcher) {
	var nCouples int
	if ncc := s.NccPatches(); len(ncc) != 0 {
		nCouples = ncc[0].Len()
	}
	transferred, remaining := s.InterfaceAreas()
	open := s.Openness()
	maxOpen := 0.
	if len(open) != 0 {
		maxOpen = floats.Max(open)
	}
	fmt.Fprintf(w, "Step %d: state = %s, stitches = %v, couples = %d\n", step, s.State(), s.Stitches(), nCouples)
	fmt.Fprintf(w, "  transferred area = %.6g, remaining area = %.6g, max openness = %.3e\n",
		transferred, remaining, maxOpen)
}
