package mhub

// REST endpoints on the MHUB web server
const (
	SystemInfoEndpoint Endpoint = "/api/data/100/"
	ZoneDataEndpoint   Endpoint = "/api/data/102"
	StateEndpoint      Endpoint = "/api/data/0/"
	PowerOnEndpoint    Endpoint = "/api/power/1/"
	PowerOffEndpoint   Endpoint = "/api/power/0/"

	// switchEndpointFormat takes the lower-cased output id and the input id
	switchEndpointFormat = "/api/control/switch/%s/%s/"
)

// DefaultName is used when the switcher does not report mhub_name
const DefaultName = "MHUB"

// Fallback values for incomplete port descriptions
const (
	UnknownOutputType = "unknown"
	UnknownOutputID   = "Unknown"
)

// StaticSources is the source list used by firmware that does not describe its inputs
var StaticSources = Sources{
	{ID: "1", Label: "Input 1"},
	{ID: "2", Label: "Input 2"},
	{ID: "3", Label: "Input 3"},
	{ID: "4", Label: "Input 4"},
}
