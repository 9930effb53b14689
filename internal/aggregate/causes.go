package aggregate

import (
	"github.com/speedwagon-io/wificonnector/internal/model"
)

type CauseInfo struct {
	Description string
	ImpactScore float64
}

// causeCatalog holds the 802.11 reason codes plus the controller-specific
// 2xx codes with their relative impact on clients.
var causeCatalog = map[int64]CauseInfo{
	1:   {"Unspecified reason", 14.3},
	3:   {"Deauthenticated - leaving or left BSS", 17.4},
	4:   {"Disassociated due to inactivity", 13.0},
	5:   {"Disassociated - AP unable to handle all STAs", 21.5},
	6:   {"Class 2 frame received from nonauthenticated STA", 8.5},
	7:   {"Class 3 frame received from nonassociated STA", 8.5},
	8:   {"Disassociated - STA has left BSS", 17.8},
	15:  {"4-way handshake timeout", 15.2},
	25:  {"Disassociated due to insufficient QoS", 94.6},
	31:  {"Disassociated - AP unable to handle all associated STAs", 19.5},
	33:  {"Disassociated - STA requesting association is not authenticated", 10.2},
	45:  {"Peer unreachable", 28.3},
	47:  {"Requested from peer", 23.2},
	200: {"AP lost heartbeat with controller", 45.0},
	201: {"AP firmware update in progress", 12.0},
	202: {"AP power failure or reboot", 25.0},
	203: {"Network connectivity issue", 30.0},
	204: {"AP configuration error", 15.0},
}

func LookupCause(code int64) (CauseInfo, bool) {
	info, ok := causeCatalog[code]
	return info, ok
}

type CauseResult struct {
	Causes []model.DisconnectCause
	// Online counts causes dropped because their AP is online.
	Online int
	// UnknownAP counts causes kept although their AP is not in the snapshot.
	UnknownAP int
}

// FilterCauses keeps the disconnect causes of offline APs and completes
// them from the catalog and the AP snapshot.
func FilterCauses(causes []model.DisconnectCause, aps []model.AccessPoint) CauseResult {
	byMac := make(map[string]model.AccessPoint, len(aps))
	for _, ap := range aps {
		byMac[ap.APMac] = ap
	}

	var res CauseResult
	for _, c := range causes {
		ap, known := byMac[c.APMac]
		switch {
		case !known:
			res.UnknownAP++
		case !ap.IsOffline():
			res.Online++
			continue
		}

		if info, ok := causeCatalog[c.CauseCode]; ok {
			if c.CauseDescription == "" {
				c.CauseDescription = info.Description
			}
			if c.ImpactScore == nil {
				score := info.ImpactScore
				c.ImpactScore = &score
			}
		}

		if known {
			c.APName = fallback(c.APName, ap.APName)
			c.ZoneID = fallback(c.ZoneID, ap.ZoneID)
			c.ZoneName = fallback(c.ZoneName, ap.ZoneName)
			c.Model = fallback(c.Model, ap.Model)
		}

		res.Causes = append(res.Causes, c)
	}

	return res
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
