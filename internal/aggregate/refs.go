package aggregate

import (
	"github.com/speedwagon-io/wificonnector/internal/model"
)

// References counts client records pointing at APs or zones missing
// from the same snapshot. Such clients are still written.
type References struct {
	DanglingAP   int
	DanglingZone int
}

func (r References) Total() int {
	return r.DanglingAP + r.DanglingZone
}

func CheckReferences(zones []model.Zone, aps []model.AccessPoint, clients []model.Client) References {
	zoneIDs := make(map[string]struct{}, len(zones))
	for _, z := range zones {
		zoneIDs[z.ZoneID] = struct{}{}
	}
	apMacs := make(map[string]struct{}, len(aps))
	for _, ap := range aps {
		apMacs[ap.APMac] = struct{}{}
	}

	var r References
	for _, c := range clients {
		if c.APMac != "" {
			if _, ok := apMacs[c.APMac]; !ok {
				r.DanglingAP++
			}
		}
		if c.ZoneID != "" {
			if _, ok := zoneIDs[c.ZoneID]; !ok {
				r.DanglingZone++
			}
		}
	}
	return r
}
