// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mhub

import (
	"context"
	"errors"
	"fmt"
)

// API is the set of switcher calls discovery and entities rely on. *Client implements it.
type API interface {
	GetSystemInfo(ctx context.Context) (*SystemInfo, error)
	GetZones(ctx context.Context) (ZoneMapping, error)
	GetPowerState(ctx context.Context) (bool, error)
	SetPower(ctx context.Context, on bool) error
	SwitchInput(ctx context.Context, output, input ID) error
}

// Strategy selects how outputs are turned into entities. Different firmware generations
// expose different metadata, so the strategy is either forced by configuration or probed.
type Strategy string

const (
	StrategyAuto           Strategy = "auto"
	StrategyZoneMapped     Strategy = "zone"
	StrategyLabelMapped    Strategy = "label"
	StrategyStaticFallback Strategy = "static"
)

// ParseStrategy maps a configuration value to a Strategy. Empty means auto.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(value) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategyZoneMapped, StrategyLabelMapped, StrategyStaticFallback:
		return Strategy(value), nil
	}
	return "", fmt.Errorf("unknown discovery strategy: %s", value)
}

// Output is one discovered output port that qualifies for an entity
type Output struct {
	ID   ID           `json:"id"`
	Name string       `json:"name"`
	Type string       `json:"type"`
	Zone *ZoneDetails `json:"zone,omitempty"`
}

// Topology is the result of one discovery pass
type Topology struct {
	Name     string   `json:"mhub_name"`
	Strategy Strategy `json:"strategy"`
	Outputs  []Output `json:"outputs"`
	Sources  Sources  `json:"sources"`
}

// Source is one selectable input
type Source struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
}

// Sources keeps input labels in the order the switcher reported them
type Sources []Source

// Set replaces the label of id in place, or appends it when id is new
func (s *Sources) Set(id ID, label string) {
	for i := range *s {
		if (*s)[i].ID == id {
			(*s)[i].Label = label
			return
		}
	}
	*s = append(*s, Source{ID: id, Label: label})
}

// Labels returns the labels in order
func (s Sources) Labels() []string {
	labels := make([]string, 0, len(s))
	for _, source := range s {
		labels = append(labels, source.Label)
	}
	return labels
}

// Lookup maps a label back to its input id. When several inputs share the label the last
// one wins. Inputs without an id never match.
func (s Sources) Lookup(label string) (ID, bool) {
	var id ID
	for _, source := range s {
		if source.Label == label && source.ID != "" {
			id = source.ID
		}
	}
	return id, id != ""
}

// Clone returns a copy that shares nothing with s
func (s Sources) Clone() Sources {
	return append(Sources{}, s...)
}

// Probe picks a strategy from what the switcher answers: no described inputs means the
// static source list, a non-empty zone list means zone naming, anything else label naming.
// The zone mapping is returned so it does not need to be fetched twice.
func Probe(ctx context.Context, api API, info *SystemInfo) (Strategy, ZoneMapping) {
	if !info.HasInputs() {
		return StrategyStaticFallback, nil
	}
	zones, err := api.GetZones(ctx)
	if err != nil || len(zones) == 0 {
		return StrategyLabelMapped, nil
	}
	return StrategyZoneMapped, zones
}

// Discover reads the switcher topology with the given strategy. The returned topology is never
// nil: on failure it holds whatever could be gathered and the error says what went wrong.
func Discover(ctx context.Context, api API, strategy Strategy) (*Topology, error) {
	topology := &Topology{
		Name:     DefaultName,
		Strategy: strategy,
		Sources:  Sources{},
	}

	info, err := api.GetSystemInfo(ctx)
	if err != nil {
		return topology, err
	}
	topology.Name = info.MHUB.Name

	var zones ZoneMapping
	var zoneErr error
	switch strategy {
	case StrategyAuto, "":
		strategy, zones = Probe(ctx, api, info)
	case StrategyZoneMapped:
		zones, zoneErr = api.GetZones(ctx)
		if zones == nil {
			zones = ZoneMapping{}
		}
	}
	topology.Strategy = strategy

	if strategy == StrategyStaticFallback {
		topology.Sources = StaticSources.Clone()
	} else {
		topology.Sources = SourcesFromInputs(info.IOData.InputVideo)
	}

	for _, port := range info.IOData.OutputVideo {
		outputType := port.Type
		if outputType == "" {
			outputType = UnknownOutputType
		}
		for _, label := range port.Labels {
			id := label.ID
			if id == "" {
				id = UnknownOutputID
			}
			output := Output{ID: id, Type: outputType}

			if strategy == StrategyZoneMapped {
				details, ok := zones[id]
				if !ok {
					// not part of an active zone
					continue
				}
				output.Zone = &details
				output.Name = fmt.Sprintf("%s (%s) (%s)", details.ZoneLabel, id, outputType)
			} else {
				output.Name = labelName(label, id, outputType)
			}
			topology.Outputs = append(topology.Outputs, output)
		}
	}

	if zoneErr != nil {
		return topology, zoneErr
	}
	return topology, nil
}

// SourcesFromInputs builds the ordered source list. When any label of an input carries a
// show flag, hidden labels of that input are dropped. Labels without an id are skipped and
// a repeated id keeps its first position with the last label.
func SourcesFromInputs(inputs []Port) Sources {
	sources := Sources{}
	for _, input := range inputs {
		anyShow := false
		for _, label := range input.Labels {
			if label.Show != nil {
				anyShow = true
				break
			}
		}
		for _, label := range input.Labels {
			if label.ID == "" {
				continue
			}
			if !anyShow || label.Visible() {
				sources.Set(label.ID, label.Label)
			}
		}
	}
	return sources
}

// IsStatusError reports whether err came from a non-200 answer
func IsStatusError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}

func labelName(label Label, id ID, outputType string) string {
	name := label.Label
	if name == "" {
		name = fmt.Sprintf("Output %s", id)
	}
	return fmt.Sprintf("%s (%s)", name, outputType)
}
