package ir

import "fmt"

// Identity addresses one component instance.
//
// Name is hierarchical: a root instance has a bare name, a child loaded
// under alias "db" from parent "api" is named "api.db". Within one
// (Org, App, Stage) the name is unique and stable across runs; it keys
// both the instance's state and its telemetry.
type Identity struct {
	Org              string `json:"org,omitempty"`
	App              string `json:"app,omitempty"`
	Stage            string `json:"stage,omitempty"`
	Name             string `json:"name"`
	ComponentName    string `json:"componentName,omitempty"`
	ComponentVersion string `json:"componentVersion,omitempty"`
}

// Key renders the storage key "org/app/stage/name".
func (id Identity) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s", id.Org, id.App, id.Stage, id.Name)
}

// Ref returns the component reference this identity runs.
func (id Identity) Ref() ComponentRef {
	return ComponentRef{Name: id.ComponentName, Version: id.ComponentVersion}
}

// Child derives the identity of a child instance loaded under alias.
func (id Identity) Child(ref ComponentRef, alias string) Identity {
	return Identity{
		Org:              id.Org,
		App:              id.App,
		Stage:            id.Stage,
		Name:             ChildName(id.Name, alias),
		ComponentName:    ref.Name,
		ComponentVersion: ref.Version,
	}
}

// Credentials is the opaque provider credential bundle
// (provider -> setting -> value). It is passed through untouched.
type Credentials map[string]map[string]string

// Clone returns a deep copy so children never share a mutable bundle.
func (c Credentials) Clone() Credentials {
	if c == nil {
		return nil
	}
	out := make(Credentials, len(c))
	for provider, settings := range c {
		cp := make(map[string]string, len(settings))
		for k, v := range settings {
			cp[k] = v
		}
		out[provider] = cp
	}
	return out
}

// Socket references the telemetry channel of an observed invocation.
type Socket struct {
	ConnectionID string `json:"connectionId"`
	DomainName   string `json:"domainName,omitempty"`
	Stage        string `json:"stage,omitempty"`
}

// Live reports whether events can be routed to an observer.
func (s *Socket) Live() bool {
	return s != nil && s.ConnectionID != ""
}

// Invocation is one runComponent request.
//
// The identity fields are flattened onto the request so the payload matches
// what the engine backend expects.
type Invocation struct {
	ID string `json:"invocationId,omitempty"`
	Identity
	AccessKey   string      `json:"accessKey,omitempty"`
	Credentials Credentials `json:"credentials,omitempty"`
	DebugMode   bool        `json:"debugMode,omitempty"`
	Socket      *Socket     `json:"socket,omitempty"`
	Method      string      `json:"method"`
	Inputs      IRObject    `json:"inputs"`
}

// ComponentsKey is the input key under which a parent receives child
// component declarations, keyed by alias.
const ComponentsKey = "components"

// EventKind names a telemetry event.
type EventKind string

const (
	EventDebug  EventKind = "debug"
	EventLog    EventKind = "log"
	EventStatus EventKind = "status"
	EventEcho   EventKind = "echo"
)

// Event is one telemetry message routed to the observer of a call tree.
type Event struct {
	Identity
	AccessKey string    `json:"accessKey,omitempty"`
	Kind      EventKind `json:"event"`
	Data      string    `json:"data"`
	Socket    *Socket   `json:"socket,omitempty"`
	Seq       int64     `json:"seq,omitempty"`
}

// StateRecord is the persisted form of one instance's state.
type StateRecord struct {
	Identity
	AccessKey string   `json:"accessKey,omitempty"`
	State     IRObject `json:"state"`
}

// PackageURLs is a pre-signed upload/download pair for a code artifact.
type PackageURLs struct {
	Upload   string `json:"upload"`
	Download string `json:"download"`
}
