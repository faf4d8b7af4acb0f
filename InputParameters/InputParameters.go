package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/ncstitch/mesh"
	"github.com/notargets/ncstitch/stitcher"
)

var validate = validator.New()

type BlockParameters struct {
	Origin [3]float64 `json:"Origin"`
	Size   [3]float64 `json:"Size" validate:"dive,gt=0"`
	Cells  [3]int     `json:"Cells" validate:"dive,gte=1"`
}

func (bp BlockParameters) Block() mesh.Block {
	return mesh.Block{
		Origin: r3.Vec{X: bp.Origin[0], Y: bp.Origin[1], Z: bp.Origin[2]},
		Size:   r3.Vec{X: bp.Size[0], Y: bp.Size[1], Z: bp.Size[2]},
		Cells:  bp.Cells,
	}
}

// Parameters obtained from the YAML input file. Zero valued stitcher constants take their defaults.
type StitchParameters struct {
	Title                     string          `json:"Title"`
	Motion                    string          `json:"Motion"`
	Geometric                 bool            `json:"Geometric"`
	IntersectionTolerance     float64         `json:"IntersectionTolerance" validate:"gte=0"`
	StabilisationThreshold    float64         `json:"StabilisationThreshold" validate:"gte=0"`
	StabilisationPerturbation float64         `json:"StabilisationPerturbation" validate:"gte=0"`
	IntersectionWorkers       int             `json:"IntersectionWorkers" validate:"gte=0"`
	Owner                     BlockParameters `json:"Owner"`
	Neighbour                 BlockParameters `json:"Neighbour"`
	// Neighbour block displacement applied at each motion step
	Displacement [3]float64 `json:"Displacement"`
	Steps        int        `json:"Steps" validate:"gte=0"`
}

func (ip *StitchParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *StitchParameters) Validate() error {
	if err := validate.Struct(ip); err != nil {
		return fmt.Errorf("invalid input parameters: %w", err)
	}
	_, err := ip.Config()
	return err
}

// Config is the stitcher configuration, defaults filled in
func (ip *StitchParameters) Config() (cfg stitcher.Config, err error) {
	cfg = stitcher.DefaultConfig()
	if ip.IntersectionTolerance != 0 {
		cfg.IntersectionTolerance = ip.IntersectionTolerance
	}
	if ip.StabilisationThreshold != 0 {
		cfg.StabilisationThreshold = ip.StabilisationThreshold
	}
	if ip.StabilisationPerturbation != 0 {
		cfg.StabilisationPerturbation = ip.StabilisationPerturbation
	}
	if ip.Motion != "" {
		cfg.Motion = ip.Motion
	}
	if ip.IntersectionWorkers != 0 {
		cfg.IntersectionWorkers = ip.IntersectionWorkers
	}
	err = cfg.Validate()
	return
}

// Moving is true when the case moves the mesh
func (ip *StitchParameters) Moving() bool {
	return ip.Steps > 0 && ip.Displacement != [3]float64{}
}

func (ip *StitchParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t\t= Motion\n", ip.Motion)
	fmt.Printf("%v\t\t\t= Geometric\n", ip.Geometric)
	fmt.Printf("%8.2e\t\t= IntersectionTolerance\n", ip.IntersectionTolerance)
	fmt.Printf("%8.2e\t\t= StabilisationThreshold\n", ip.StabilisationThreshold)
	fmt.Printf("%8.2e\t\t= StabilisationPerturbation\n", ip.StabilisationPerturbation)
	fmt.Printf("[%d]\t\t\t\t= IntersectionWorkers\n", ip.IntersectionWorkers)
	for _, b := range []struct {
		name string
		bp   BlockParameters
	}{{"Owner", ip.Owner}, {"Neighbour", ip.Neighbour}} {
		fmt.Printf("%s: Origin = %v, Size = %v, Cells = %v\n", b.name, b.bp.Origin, b.bp.Size, b.bp.Cells)
	}
	if ip.Steps > 0 {
		fmt.Printf("[%d]\t\t\t\t= Steps of %v\n", ip.Steps, ip.Displacement)
	}
}
