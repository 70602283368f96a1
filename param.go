package netexp

// param.go supports setting experiment parameters by name from string
// encoded values, as given on the command line (--set name=value) or in the
// vary block of a sweep configuration

import (
	"fmt"
	"golang.org/x/exp/slices"
	"sort"
	"strconv"
	"strings"
)

// A valueStruct type holds three different types a value might have,
// typically only one of these is used, and which one is known by context
type valueStruct struct {
	intValue    int
	floatValue  float64
	stringValue string
	boolValue   bool
}

// stringToValueStruct takes a string (used in the run-time configuration phase)
// and determines whether it is an integer, floating point, or a string
func stringToValueStruct(v string) (valueStruct, []string) {
	vs := valueStruct{intValue: 0, floatValue: 0.0, stringValue: v, boolValue: false}

	// try conversion to int
	ivalue, ierr := strconv.Atoi(v)
	if ierr == nil {
		vs.intValue = ivalue
		if ivalue == 1 {
			vs.boolValue = true
		}
		vs.floatValue = float64(ivalue)
		return vs, []string{"int", "float"}
	}

	// failing that, try conversion to float
	fvalue, ferr := strconv.ParseFloat(v, 64)
	if ferr == nil {
		vs.floatValue = fvalue
		return vs, []string{"float"}
	}

	// left with it being a string.  See if true, True
	if v == "true" || v == "True" {
		vs.boolValue = true
		return vs, []string{"bool"}
	}
	if v == "false" || v == "False" {
		return vs, []string{"bool"}
	}

	return vs, []string{"string"}
}

// ExpParams maps each settable parameter name to the value type it requires
var ExpParams = map[string]string{
	"totaltime":      "float",
	"nodes":          "int",
	"bases":          "int",
	"sinks":          "int",
	"protocol":       "int",
	"lossModel":      "int",
	"fading":         "int",
	"mobility":       "int",
	"traceMobility":  "bool",
	"mobilityLog":    "string",
	"yPos":           "float",
	"rate":           "string",
	"packetSize":     "int",
	"maxPackets":     "int",
	"port":           "int",
	"speed":          "float",
	"pause":          "float",
	"macMode":        "int",
	"frequency":      "float",
	"baseHeight":     "float",
	"nodeHeight":     "float",
	"baseGain":       "float",
	"nodeGain":       "float",
	"txRange":        "float",
	"slotTime":       "float",
	"guardTime":      "float",
	"interFrameTime": "float",
	"phyRate":        "float",
	"verbose":        "int",
}

// ParamNames lists the settable parameter names in sorted order
func ParamNames() []string {
	names := make([]string, 0, len(ExpParams))
	for name := range ExpParams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetParam assigns the string encoded value to the parameter named
func (cfg *ExperimentConfig) SetParam(param, value string) error {
	want, present := ExpParams[param]
	if !present {
		return fmt.Errorf("parameter %s not recognized", param)
	}
	vs, types := stringToValueStruct(value)

	// any value can be taken as a string, and 0 or 1 as a bool
	if want == "bool" && slices.Contains(types, "int") && (vs.intValue == 0 || vs.intValue == 1) {
		types = append(types, "bool")
	}
	if want != "string" && !slices.Contains(types, want) {
		return fmt.Errorf("parameter %s needs a %s value, given %q", param, want, value)
	}
	cfg.setParam(param, vs)
	return nil
}

// SetParamAssignment splits a "name=value" string and applies it
func (cfg *ExperimentConfig) SetParamAssignment(assignment string) error {
	name, value, found := strings.Cut(assignment, "=")
	if !found {
		return fmt.Errorf("parameter assignment %q not of the form name=value", assignment)
	}
	return cfg.SetParam(strings.TrimSpace(name), strings.TrimSpace(value))
}

// GetParam returns the string encoding of the named parameter's value
func (cfg *ExperimentConfig) GetParam(param string) (string, error) {
	ftoa := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	switch param {
	case "totaltime":
		return ftoa(cfg.TotalTime), nil
	case "nodes":
		return strconv.Itoa(cfg.Nodes), nil
	case "bases":
		return strconv.Itoa(cfg.BaseStations), nil
	case "sinks":
		return strconv.Itoa(cfg.Sinks), nil
	case "protocol":
		return strconv.Itoa(cfg.Protocol), nil
	case "lossModel":
		return strconv.Itoa(cfg.LossModel), nil
	case "fading":
		return strconv.Itoa(cfg.Fading), nil
	case "mobility":
		return strconv.Itoa(cfg.Mobility), nil
	case "traceMobility":
		return strconv.FormatBool(cfg.TraceMobility), nil
	case "mobilityLog":
		return cfg.MobilityLog, nil
	case "yPos":
		return ftoa(cfg.YPos), nil
	case "rate":
		return cfg.DataRate, nil
	case "packetSize":
		return strconv.Itoa(cfg.PacketSize), nil
	case "maxPackets":
		return strconv.Itoa(cfg.MaxPackets), nil
	case "port":
		return strconv.Itoa(cfg.Port), nil
	case "speed":
		return ftoa(cfg.NodeSpeed), nil
	case "pause":
		return ftoa(cfg.NodePause), nil
	case "macMode":
		return strconv.Itoa(cfg.MacMode), nil
	case "frequency":
		return ftoa(cfg.Frequency), nil
	case "baseHeight":
		return ftoa(cfg.BaseHeight), nil
	case "nodeHeight":
		return ftoa(cfg.NodeHeight), nil
	case "baseGain":
		return ftoa(cfg.BaseGain), nil
	case "nodeGain":
		return ftoa(cfg.NodeGain), nil
	case "txRange":
		return ftoa(cfg.TxRange), nil
	case "slotTime":
		return ftoa(cfg.SlotTime), nil
	case "guardTime":
		return ftoa(cfg.GuardTime), nil
	case "interFrameTime":
		return ftoa(cfg.InterFrameTime), nil
	case "phyRate":
		return ftoa(cfg.PhyRate), nil
	case "verbose":
		return strconv.Itoa(cfg.Verbose), nil
	}
	return "", fmt.Errorf("parameter %s not recognized", param)
}

// setParam gives a value to an ExperimentConfig parameter.  The value has
// already been checked to carry the type the parameter needs
func (cfg *ExperimentConfig) setParam(param string, value valueStruct) {
	switch param {
	case "totaltime":
		cfg.TotalTime = value.floatValue
	case "nodes":
		cfg.Nodes = value.intValue
	case "bases":
		cfg.BaseStations = value.intValue
	case "sinks":
		cfg.Sinks = value.intValue
	case "protocol":
		cfg.Protocol = value.intValue
	case "lossModel":
		cfg.LossModel = value.intValue
	case "fading":
		cfg.Fading = value.intValue
	case "mobility":
		cfg.Mobility = value.intValue
	case "traceMobility":
		cfg.TraceMobility = value.boolValue
	case "mobilityLog":
		cfg.MobilityLog = value.stringValue
	case "yPos":
		cfg.YPos = value.floatValue
	case "rate":
		cfg.DataRate = value.stringValue
	case "packetSize":
		cfg.PacketSize = value.intValue
	case "maxPackets":
		cfg.MaxPackets = value.intValue
	case "port":
		cfg.Port = value.intValue
	case "speed":
		cfg.NodeSpeed = value.floatValue
	case "pause":
		cfg.NodePause = value.floatValue
	case "macMode":
		cfg.MacMode = value.intValue
	case "frequency":
		cfg.Frequency = value.floatValue
	case "baseHeight":
		cfg.BaseHeight = value.floatValue
	case "nodeHeight":
		cfg.NodeHeight = value.floatValue
	case "baseGain":
		cfg.BaseGain = value.floatValue
	case "nodeGain":
		cfg.NodeGain = value.floatValue
	case "txRange":
		cfg.TxRange = value.floatValue
	case "slotTime":
		cfg.SlotTime = value.floatValue
	case "guardTime":
		cfg.GuardTime = value.floatValue
	case "interFrameTime":
		cfg.InterFrameTime = value.floatValue
	case "phyRate":
		cfg.PhyRate = value.floatValue
	case "verbose":
		cfg.Verbose = value.intValue
	}
}
