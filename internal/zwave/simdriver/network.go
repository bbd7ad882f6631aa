package simdriver

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// Network describes the simulated mesh: the controller's home id and the
// nodes it reports after start-up.
type Network struct {
	HomeID uint32     `yaml:"home_id"`
	Nodes  []NodeSpec `yaml:"nodes"`
}

// NodeSpec describes one simulated node.
type NodeSpec struct {
	ID             uint8       `yaml:"id"`
	Manufacturer   string      `yaml:"manufacturer"`
	ManufacturerID string      `yaml:"manufacturer_id"`
	Product        string      `yaml:"product"`
	ProductType    string      `yaml:"product_type"`
	ProductID      string      `yaml:"product_id"`
	Type           string      `yaml:"type"`
	Name           string      `yaml:"name"`
	Location       string      `yaml:"location"`
	Values         []ValueSpec `yaml:"values"`
}

// ValueSpec describes one value on a simulated node.
type ValueSpec struct {
	CommandClass uint8    `yaml:"command_class"`
	Instance     uint8    `yaml:"instance"`
	Index        uint8    `yaml:"index"`
	Kind         string   `yaml:"type"`
	Genre        string   `yaml:"genre"`
	Label        string   `yaml:"label"`
	Units        string   `yaml:"units"`
	ReadOnly     bool     `yaml:"read_only"`
	WriteOnly    bool     `yaml:"write_only"`
	Min          int32    `yaml:"min"`
	Max          int32    `yaml:"max"`
	Value        any      `yaml:"value"`
	Items        []string `yaml:"items"`
}

// LoadNetwork reads a network description from a YAML file.
func LoadNetwork(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading network file: %w", err)
	}

	var n Network
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("parsing network file: %w", err)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

// Validate checks node ids and value identities.
func (n *Network) Validate() error {
	var errs []string
	seen := make(map[uint8]bool)

	for i, node := range n.Nodes {
		if node.ID == 0 || node.ID > 232 {
			errs = append(errs, fmt.Sprintf("nodes[%d].id must be 1-232", i))
		}
		if seen[node.ID] {
			errs = append(errs, fmt.Sprintf("nodes[%d].id %d is duplicated", i, node.ID))
		}
		seen[node.ID] = true

		keys := make(map[zwave.ValueKey]bool)
		for j, v := range node.Values {
			key := zwave.ValueKey{
				CommandClass: zwave.CommandClass(v.CommandClass),
				Index:        v.Index,
				Instance:     instanceOf(v),
			}
			if keys[key] {
				errs = append(errs, fmt.Sprintf("nodes[%d].values[%d] duplicates class/index/instance", i, j))
			}
			keys[key] = true

			if _, err := normalize(zwave.ValueKind(v.Kind), v.Value); err != nil {
				errs = append(errs, fmt.Sprintf("nodes[%d].values[%d]: %v", i, j, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("network errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func instanceOf(v ValueSpec) uint8 {
	if v.Instance == 0 {
		return 1
	}
	return v.Instance
}

func genreOf(v ValueSpec) zwave.ValueGenre {
	if v.Genre == "" {
		return zwave.GenreUser
	}
	return zwave.ValueGenre(v.Genre)
}

// normalize converts a YAML scalar to the Go type the typed accessors
// return for kind. A nil value becomes the kind's zero value.
func normalize(kind zwave.ValueKind, value any) (any, error) {
	switch kind {
	case zwave.KindBool:
		if value == nil {
			return false, nil
		}
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("bool value expected, got %T", value)
		}
		return b, nil

	case zwave.KindByte:
		n, err := wholeNumber(value, 0, math.MaxUint8)
		return uint8(n), err

	case zwave.KindShort:
		n, err := wholeNumber(value, math.MinInt16, math.MaxInt16)
		return int16(n), err

	case zwave.KindInt:
		n, err := wholeNumber(value, math.MinInt32, math.MaxInt32)
		return int32(n), err

	case zwave.KindDecimal:
		switch x := value.(type) {
		case nil:
			return float64(0), nil
		case int:
			return float64(x), nil
		case float64:
			return x, nil
		}
		return nil, fmt.Errorf("decimal value expected, got %T", value)

	case zwave.KindString, zwave.KindList:
		if value == nil {
			return "", nil
		}
		return fmt.Sprint(value), nil

	case zwave.KindButton, zwave.KindSchedule, zwave.KindRaw:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown value type %q", kind)
	}
}

func wholeNumber(value any, lo, hi int64) (int64, error) {
	var n int64
	switch x := value.(type) {
	case nil:
		return 0, nil
	case int:
		n = int64(x)
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("whole number expected, got %v", x)
		}
		n = int64(x)
	default:
		return 0, fmt.Errorf("number expected, got %T", value)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d outside %d..%d", n, lo, hi)
	}
	return n, nil
}

// DefaultNetwork is a small mesh used when no network file is configured:
// the controller, a plug-in switch, a dimmer and a multisensor.
func DefaultNetwork() *Network {
	return &Network{
		HomeID: 0xE5A1C0DE,
		Nodes: []NodeSpec{
			{
				ID: 1, Manufacturer: "Aeotec", ManufacturerID: "0x0086",
				Product: "Z-Stick Gen5", ProductType: "0x0001", ProductID: "0x005a",
				Type: "Static PC Controller",
			},
			{
				ID: 2, Manufacturer: "Aeotec", ManufacturerID: "0x0086",
				Product: "Smart Switch 6", ProductType: "0x0003", ProductID: "0x0060",
				Type: "Binary Power Switch", Name: "Kettle", Location: "Kitchen",
				Values: []ValueSpec{
					{CommandClass: 0x25, Kind: "bool", Genre: "user", Label: "Switch", Value: false},
					{CommandClass: 0x32, Index: 8, Kind: "decimal", Genre: "user", Label: "Power", Units: "W", ReadOnly: true, Value: 0.0},
					{CommandClass: 0x32, Index: 0, Kind: "decimal", Genre: "user", Label: "Energy", Units: "kWh", ReadOnly: true, Value: 12.4},
				},
			},
			{
				ID: 3, Manufacturer: "Fibaro", ManufacturerID: "0x010f",
				Product: "Dimmer 2", ProductType: "0x0102", ProductID: "0x1000",
				Type: "Multilevel Power Switch", Name: "Ceiling", Location: "Living Room",
				Values: []ValueSpec{
					{CommandClass: 0x26, Kind: "byte", Genre: "user", Label: "Level", Max: 99, Value: 0},
					{CommandClass: 0x26, Index: 1, Kind: "button", Genre: "user", Label: "Bright", WriteOnly: true},
					{CommandClass: 0x70, Index: 1, Kind: "list", Genre: "config", Label: "Forced switch on level",
						Items: []string{"Last", "Full"}, Value: "Last"},
				},
			},
			{
				ID: 4, Manufacturer: "Aeotec", ManufacturerID: "0x0086",
				Product: "MultiSensor 6", ProductType: "0x0002", ProductID: "0x0064",
				Type: "Home Security Sensor", Name: "Hall Sensor", Location: "Hall",
				Values: []ValueSpec{
					{CommandClass: 0x30, Kind: "bool", Genre: "user", Label: "Sensor", ReadOnly: true, Value: false},
					{CommandClass: 0x31, Index: 1, Kind: "decimal", Genre: "user", Label: "Temperature", Units: "C", ReadOnly: true, Value: 20.5},
					{CommandClass: 0x31, Index: 5, Kind: "decimal", Genre: "user", Label: "Relative Humidity", Units: "%", ReadOnly: true, Value: 45.0},
					{CommandClass: 0x80, Kind: "byte", Genre: "user", Label: "Battery Level", Units: "%", ReadOnly: true, Max: 100, Value: 87},
					{CommandClass: 0x84, Kind: "int", Genre: "system", Label: "Wake-up Interval", Units: "Seconds", Max: 86400, Value: 3600},
				},
			},
		},
	}
}
