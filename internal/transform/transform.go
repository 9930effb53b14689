// Package transform maps raw controller entities onto the point schema.
// Every function here is pure: the same raw entity always yields the
// same record.
package transform

import (
	"fmt"
	"time"

	"github.com/speedwagon-io/wificonnector/internal/model"
	"github.com/speedwagon-io/wificonnector/internal/retry"
)

var zoneSchema = schema{
	{Target: "zoneId", Sources: model.EntityZone.IdentityFields(), Type: typeString, Required: true},
	{Target: "zoneName", Sources: []string{"zoneName", "name"}, Type: typeString},
	{Target: "domainId", Sources: []string{"domainId"}, Type: typeString},
	{Target: "domainName", Sources: []string{"domainName"}, Type: typeString},
	{Target: "totalAPs", Sources: []string{"totalAPs"}, Type: typeInt},
	{Target: "connectedAPs", Sources: []string{"connectedAPs", "apCountOnline"}, Type: typeInt},
	{Target: "disconnectedAPs", Sources: []string{"disconnectedAPs", "apCountOffline"}, Type: typeInt},
	{Target: "clients", Sources: []string{"clients", "clientCount"}, Type: typeInt},
	{Target: "experienceScore", Sources: []string{"experienceScore"}, Type: typeFloat},
	{Target: "utilization", Sources: []string{"utilization"}, Type: typeFloat},
	{Target: "rxDesense", Sources: []string{"rxDesense"}, Type: typeFloat},
	{Target: "netflixScore", Sources: []string{"netflixScore"}, Type: typeFloat},
}

var accessPointSchema = schema{
	{Target: "apMac", Sources: model.EntityAccessPoint.IdentityFields(), Type: typeString, Required: true},
	{Target: "apName", Sources: []string{"apName", "deviceName", "name"}, Type: typeString},
	{Target: "zoneId", Sources: []string{"zoneId"}, Type: typeString},
	{Target: "zoneName", Sources: []string{"zoneName"}, Type: typeString},
	{Target: "model", Sources: []string{"model"}, Type: typeString},
	{Target: "status", Sources: []string{"status"}, Type: typeString},
	{Target: "apConnectionState", Sources: []string{"apConnectionState"}, Type: typeString},
	{Target: "connectionState", Sources: []string{"connectionState"}, Type: typeString},
	{Target: "clientCount", Sources: []string{"numClients", "clientCount"}, Type: typeInt},
	{Target: "clientCount24G", Sources: []string{"numClients24G", "clientCount24G"}, Type: typeInt},
	{Target: "clientCount5G", Sources: []string{"numClients5G", "clientCount5G"}, Type: typeInt},
	{Target: "airtime24G", Sources: []string{"airtime24G"}, Type: typeFloat},
	{Target: "airtime5G", Sources: []string{"airtime5G"}, Type: typeFloat},
	{Target: "noise24G", Sources: []string{"noise24G"}, Type: typeFloat},
	{Target: "noise5G", Sources: []string{"noise5G"}, Type: typeFloat},
	{Target: "channel24G", Sources: []string{"channel24gValue", "channel24G"}, Type: typeInt},
	{Target: "channel5G", Sources: []string{"channel50gValue", "channel5G"}, Type: typeInt},
	{Target: "eirp24G", Sources: []string{"eirp24G"}, Type: typeInt},
	{Target: "eirp5G", Sources: []string{"eirp50G", "eirp5G"}, Type: typeInt},
	{Target: "rxDesense24G", Sources: []string{"rxDesense24G"}, Type: typeFloat},
	{Target: "rxDesense5G", Sources: []string{"rxDesense5G"}, Type: typeFloat},
}

var clientSchema = schema{
	{Target: "clientMac", Sources: model.EntityClient.IdentityFields(), Type: typeString, Required: true},
	{Target: "zoneId", Sources: []string{"zoneId"}, Type: typeString},
	{Target: "apMac", Sources: []string{"apMac"}, Type: typeString},
	{Target: "apName", Sources: []string{"apName"}, Type: typeString},
	{Target: "ssid", Sources: []string{"ssid", "wlan"}, Type: typeString},
	{Target: "osType", Sources: []string{"osType"}, Type: typeString},
	{Target: "hostname", Sources: []string{"hostname", "hostName"}, Type: typeString},
	{Target: "txBytes", Sources: []string{"txBytes"}, Type: typeInt},
	{Target: "rxBytes", Sources: []string{"rxBytes"}, Type: typeInt},
	{Target: "rssi", Sources: []string{"rssi"}, Type: typeFloat},
	{Target: "snr", Sources: []string{"snr"}, Type: typeFloat},
	{Target: "uplinkRate", Sources: []string{"uplinkRate"}, Type: typeFloat},
	{Target: "downlinkRate", Sources: []string{"downlinkRate"}, Type: typeFloat},
}

var disconnectCauseSchema = schema{
	{Target: "apMac", Sources: model.EntityDisconnectCause.IdentityFields(), Type: typeString, Required: true},
	{Target: "causeCode", Sources: []string{"causeCode", "code"}, Type: typeInt, Required: true},
	{Target: "apName", Sources: []string{"apName", "deviceName", "name"}, Type: typeString},
	{Target: "zoneId", Sources: []string{"zoneId"}, Type: typeString},
	{Target: "zoneName", Sources: []string{"zoneName"}, Type: typeString},
	{Target: "model", Sources: []string{"model"}, Type: typeString},
	{Target: "causeDescription", Sources: []string{"causeDescription", "description"}, Type: typeString},
	{Target: "impactScore", Sources: []string{"impactScore"}, Type: typeFloat},
}

func Zone(raw model.RawEntity) (model.Zone, error) {
	v, err := zoneSchema.extract(raw)
	if err != nil {
		return model.Zone{}, invalid(model.EntityZone, err)
	}

	connected := intOr(v, "connectedAPs", 0)
	total, hasTotal := optInt(v, "totalAPs")
	disconnected, hasDisconnected := optInt(v, "disconnectedAPs")

	switch {
	case !hasTotal:
		total = connected + disconnected
	case !hasDisconnected:
		disconnected = max(total-connected, 0)
	}

	clients := intOr(v, "clients", 0)

	z := model.Zone{
		ZoneID:          str(v, "zoneId"),
		ZoneName:        str(v, "zoneName"),
		DomainID:        str(v, "domainId"),
		DomainName:      str(v, "domainName"),
		TotalAPs:        total,
		ConnectedAPs:    connected,
		DisconnectedAPs: disconnected,
		Clients:         clients,
		ExperienceScore: floatPtr(v, "experienceScore"),
		Utilization:     floatPtr(v, "utilization"),
		RxDesense:       floatPtr(v, "rxDesense"),
		NetflixScore:    floatPtr(v, "netflixScore"),
	}

	if total > 0 {
		z.APAvailability = round(float64(connected)/float64(total)*100, 1)
		z.ClientsPerAP = round(float64(clients)/float64(total), 2)
	}

	return z, nil
}

func AccessPoint(raw model.RawEntity) (model.AccessPoint, error) {
	v, err := accessPointSchema.extract(raw)
	if err != nil {
		return model.AccessPoint{}, invalid(model.EntityAccessPoint, err)
	}

	return model.AccessPoint{
		APMac:             str(v, "apMac"),
		APName:            str(v, "apName"),
		ZoneID:            str(v, "zoneId"),
		ZoneName:          str(v, "zoneName"),
		Model:             str(v, "model"),
		Status:            str(v, "status"),
		APConnectionState: str(v, "apConnectionState"),
		ConnectionState:   str(v, "connectionState"),
		ClientCount:       intPtr(v, "clientCount"),
		ClientCount24G:    intPtr(v, "clientCount24G"),
		ClientCount5G:     intPtr(v, "clientCount5G"),
		Airtime24G:        floatPtr(v, "airtime24G"),
		Airtime5G:         floatPtr(v, "airtime5G"),
		Noise24G:          floatPtr(v, "noise24G"),
		Noise5G:           floatPtr(v, "noise5G"),
		Channel24G:        intPtr(v, "channel24G"),
		Channel5G:         intPtr(v, "channel5G"),
		EIRP24G:           intPtr(v, "eirp24G"),
		EIRP5G:            intPtr(v, "eirp5G"),
		RxDesense24G:      floatPtr(v, "rxDesense24G"),
		RxDesense5G:       floatPtr(v, "rxDesense5G"),
	}, nil
}

func Client(raw model.RawEntity) (model.Client, error) {
	v, err := clientSchema.extract(raw)
	if err != nil {
		return model.Client{}, invalid(model.EntityClient, err)
	}

	return model.Client{
		ClientMac:    str(v, "clientMac"),
		ZoneID:       str(v, "zoneId"),
		APMac:        str(v, "apMac"),
		APName:       str(v, "apName"),
		SSID:         str(v, "ssid"),
		OSType:       str(v, "osType"),
		Hostname:     str(v, "hostname"),
		TxBytes:      intOr(v, "txBytes", 0),
		RxBytes:      intOr(v, "rxBytes", 0),
		RSSI:         floatPtr(v, "rssi"),
		SNR:          floatPtr(v, "snr"),
		UplinkRate:   floatPtr(v, "uplinkRate"),
		DownlinkRate: floatPtr(v, "downlinkRate"),
	}, nil
}

func DisconnectCause(raw model.RawEntity) (model.DisconnectCause, error) {
	v, err := disconnectCauseSchema.extract(raw)
	if err != nil {
		return model.DisconnectCause{}, invalid(model.EntityDisconnectCause, err)
	}

	return model.DisconnectCause{
		APMac:            str(v, "apMac"),
		APName:           str(v, "apName"),
		ZoneID:           str(v, "zoneId"),
		ZoneName:         str(v, "zoneName"),
		Model:            str(v, "model"),
		CauseCode:        intOr(v, "causeCode", 0),
		CauseDescription: str(v, "causeDescription"),
		ImpactScore:      floatPtr(v, "impactScore"),
	}, nil
}

// ToPoint transforms a single raw entity of the given kind into its point.
func ToPoint(kind model.EntityKind, raw model.RawEntity, ts time.Time) (model.Point, error) {
	switch kind {
	case model.EntityZone:
		z, err := Zone(raw)
		if err != nil {
			return model.Point{}, err
		}
		return z.Point(ts), nil
	case model.EntityAccessPoint:
		ap, err := AccessPoint(raw)
		if err != nil {
			return model.Point{}, err
		}
		return ap.Point(ts), nil
	case model.EntityClient:
		c, err := Client(raw)
		if err != nil {
			return model.Point{}, err
		}
		return c.Point(ts), nil
	case model.EntityDisconnectCause:
		d, err := DisconnectCause(raw)
		if err != nil {
			return model.Point{}, err
		}
		return d.Point(ts), nil
	default:
		return model.Point{}, invalid(kind, fmt.Errorf("unknown entity kind %q", kind))
	}
}

func invalid(kind model.EntityKind, err error) error {
	return retry.New(retry.KindValidation, "transform "+string(kind), err)
}

func str(v map[string]any, key string) string {
	s, _ := v[key].(string)
	return s
}

func optInt(v map[string]any, key string) (int64, bool) {
	i, ok := v[key].(int64)
	return i, ok
}

func intOr(v map[string]any, key string, def int64) int64 {
	if i, ok := optInt(v, key); ok {
		return i
	}
	return def
}

func intPtr(v map[string]any, key string) *int64 {
	if i, ok := optInt(v, key); ok {
		return &i
	}
	return nil
}

func floatPtr(v map[string]any, key string) *float64 {
	if f, ok := v[key].(float64); ok {
		return &f
	}
	return nil
}
