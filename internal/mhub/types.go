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
	"bytes"
	"encoding/json"
	"fmt"
)

// Endpoint is a path on the switcher's embedded web server
type Endpoint string

// ID is an input or output identifier. The firmware sends these as numbers or strings.
type ID string

// UnmarshalJSON accepts both JSON strings and numbers
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

// Label is one named port entry inside an input or output block
type Label struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
	// Show is nil when the firmware does not send a visibility flag
	Show *bool `json:"show,omitempty"`
}

// Visible reports the label's show flag, defaulting to true
func (l Label) Visible() bool {
	return l.Show == nil || *l.Show
}

// Port is an entry of io_data.input_video or io_data.output_video
type Port struct {
	Type   string  `json:"type,omitempty"`
	Labels []Label `json:"labels"`
}

// IOData holds the switcher's video inputs and outputs
type IOData struct {
	InputVideo  []Port `json:"input_video"`
	OutputVideo []Port `json:"output_video"`
}

// MHUBInfo is the data.mhub block of the system endpoint
type MHUBInfo struct {
	Name            string `json:"mhub_name"`
	OfficialName    string `json:"mhub_official_name,omitempty"`
	SerialNumber    string `json:"serial_number,omitempty"`
	APIVersion      string `json:"mhub_api_version,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// SystemInfo is the payload of GET /api/data/100/
type SystemInfo struct {
	MHUB   MHUBInfo `json:"mhub"`
	IOData IOData   `json:"io_data"`
}

// HasInputs reports whether the switcher described any video inputs
func (s *SystemInfo) HasInputs() bool {
	return len(s.IOData.InputVideo) > 0
}

// ZoneOutput is one output assigned to a zone
type ZoneOutput struct {
	OutputID ID `json:"output_id"`
	ArcInput ID `json:"arc_input,omitempty"`
}

// Zone is one entry of GET /api/data/102
type Zone struct {
	ZoneID         ID           `json:"zone_id,omitempty"`
	ZoneLabel      string       `json:"zone_label"`
	AutoSwitchMode bool         `json:"auto_switch_mode"`
	Outputs        []ZoneOutput `json:"outputs"`
}

// ZoneDetails is what a zone contributes to one of its outputs
type ZoneDetails struct {
	ZoneLabel      string `json:"zone_label"`
	ArcInput       ID     `json:"arc_input,omitempty"`
	AutoSwitchMode bool   `json:"auto_switch_mode"`
}

// ZoneMapping maps output ids to the zone they belong to
type ZoneMapping map[ID]ZoneDetails

// PowerState is the payload of GET /api/data/0/
type PowerState struct {
	Power bool `json:"power"`
}

// envelope wraps every response body from the switcher
type envelope[T any] struct {
	Header json.RawMessage `json:"header,omitempty"`
	Data   T               `json:"data"`
}

// StatusError is returned when the switcher answers with anything other than 200
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.Status, e.Body)
}
