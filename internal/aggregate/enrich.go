package aggregate

import (
	"github.com/speedwagon-io/wificonnector/internal/model"
)

const netflixFactor = 0.95

// EnrichZones fills the zone quality metrics the controller did not
// report from the APs and clients of the same zone. Values reported by
// the controller are kept as they are. The input slice is not modified.
func EnrichZones(zones []model.Zone, aps []model.AccessPoint, clients []model.Client) []model.Zone {
	apsByZone := make(map[string][]model.AccessPoint)
	for _, ap := range aps {
		apsByZone[ap.ZoneID] = append(apsByZone[ap.ZoneID], ap)
	}
	clientsByZone := make(map[string][]model.Client)
	for _, c := range clients {
		clientsByZone[c.ZoneID] = append(clientsByZone[c.ZoneID], c)
	}

	out := make([]model.Zone, len(zones))
	for i, z := range zones {
		zoneAPs := apsByZone[z.ZoneID]

		if z.Utilization == nil {
			z.Utilization = utilization(zoneAPs)
		}
		if z.RxDesense == nil {
			z.RxDesense = rxDesense(zoneAPs)
		}
		if z.ExperienceScore == nil {
			z.ExperienceScore = experienceScore(clientsByZone[z.ZoneID])
		}
		if z.NetflixScore == nil && z.ExperienceScore != nil {
			v := round(*z.ExperienceScore*netflixFactor, 1)
			z.NetflixScore = &v
		}
		out[i] = z
	}
	return out
}

// utilization is the mean over APs of the per-AP airtime mean. APs that
// report no airtime on either band are left out.
func utilization(aps []model.AccessPoint) *float64 {
	var (
		sum float64
		n   int
	)
	for _, ap := range aps {
		a24, a5 := deref(ap.Airtime24G), deref(ap.Airtime5G)
		if a24 == 0 && a5 == 0 {
			continue
		}
		sum += (a24 + a5) / 2
		n++
	}
	return meanOf(sum, n)
}

func rxDesense(aps []model.AccessPoint) *float64 {
	var (
		sum float64
		n   int
	)
	for _, ap := range aps {
		for _, v := range []float64{deref(ap.RxDesense24G), deref(ap.RxDesense5G)} {
			if v != 0 {
				sum += v
				n++
			}
		}
	}
	return meanOf(sum, n)
}

func experienceScore(clients []model.Client) *float64 {
	var (
		sum float64
		n   int
	)
	for _, c := range clients {
		if v := deref(c.RSSI); v != 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return nil
	}

	score := round(ScoreFromRSSI(sum/float64(n)), 1)
	return &score
}

// ScoreFromRSSI maps an average client RSSI in dBm to a 0-100 score.
// -50 and better is excellent, -70 good, -85 fair.
func ScoreFromRSSI(rssi float64) float64 {
	switch {
	case rssi >= -50:
		return 100
	case rssi >= -70:
		return 80 + (rssi+70)/20*20
	case rssi >= -85:
		return 60 + (rssi+85)/15*20
	default:
		return max(0, 60+(rssi+85)/15*60)
	}
}

func meanOf(sum float64, n int) *float64 {
	if n == 0 {
		return nil
	}
	v := round(sum/float64(n), 1)
	return &v
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
