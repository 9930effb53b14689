package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RawEntity is one element of a controller query response.
type RawEntity map[string]any

type EntityKind string

const (
	EntityZone            EntityKind = "zone"
	EntityAccessPoint     EntityKind = "ap"
	EntityClient          EntityKind = "client"
	EntityDisconnectCause EntityKind = "disconnect-cause"
)

var EntityKinds = []EntityKind{EntityZone, EntityAccessPoint, EntityClient, EntityDisconnectCause}

var identityFields = map[EntityKind][]string{
	EntityZone:            {"zoneId", "id"},
	EntityAccessPoint:     {"apMac", "mac", "apMacAddress", "macAddress"},
	EntityClient:          {"clientMac", "macAddress"},
	EntityDisconnectCause: {"apMac", "mac", "apMacAddress", "macAddress"},
}

// IdentityFields lists the raw attribute names holding the primary
// identifier, in order of preference.
func (k EntityKind) IdentityFields() []string {
	return identityFields[k]
}

// Key returns the trimmed primary identifier of raw, or "" when absent.
func (k EntityKind) Key(raw RawEntity) string {
	for _, name := range k.IdentityFields() {
		v, ok := raw[name]
		if !ok || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case json.Number:
			s = val.String()
		default:
			s = fmt.Sprint(val)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
