package aggregate

import (
	"math"
	"sort"

	"github.com/speedwagon-io/wificonnector/internal/model"
)

const (
	unknownOS     = "Unknown"
	bytesPerMB    = 1e6
	DefaultTopN   = 10
	DefaultSLAMin = 80.0
)

// Venue rolls all zones of the snapshot up into one record.
func Venue(zones []model.Zone, slaThreshold float64) model.Venue {
	v := model.Venue{TotalZones: int64(len(zones))}

	var (
		scoreSum  float64
		scored    int
		compliant int
	)
	for _, z := range zones {
		v.TotalAPs += z.TotalAPs
		v.TotalClients += z.Clients

		if z.ExperienceScore == nil {
			continue
		}
		scoreSum += *z.ExperienceScore
		scored++
		if *z.ExperienceScore >= slaThreshold {
			compliant++
		}
	}

	if scored > 0 {
		avg := round(scoreSum/float64(scored), 1)
		v.AvgExperienceScore = &avg
	}
	if len(zones) > 0 {
		v.SLACompliance = round(float64(compliant)/float64(len(zones))*100, 1)
	}

	return v
}

// OsDistribution groups clients by OS type. Percentages are left
// unrounded so that they sum to 100.
func OsDistribution(clients []model.Client) []model.OsDistributionEntry {
	if len(clients) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, c := range clients {
		os := c.OSType
		if os == "" {
			os = unknownOS
		}
		counts[os]++
	}

	total := float64(len(clients))
	out := make([]model.OsDistributionEntry, 0, len(counts))
	for os, n := range counts {
		out = append(out, model.OsDistributionEntry{
			OS:         os,
			Count:      n,
			Percentage: float64(n) / total * 100,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].OS < out[j].OS
	})

	return out
}

// HostUsage returns the topN hosts by traffic in MB. Clients sharing a
// hostname are summed into one entry.
func HostUsage(clients []model.Client, topN int) []model.HostUsageEntry {
	if topN <= 0 {
		topN = DefaultTopN
	}

	usage := make(map[string]int64)
	for _, c := range clients {
		name := c.DisplayName()
		if name == "" {
			continue
		}
		usage[name] += c.TxRxBytes()
	}

	out := make([]model.HostUsageEntry, 0, len(usage))
	for host, b := range usage {
		out = append(out, model.HostUsageEntry{
			Hostname:  host,
			DataUsage: float64(b) / bytesPerMB,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DataUsage != out[j].DataUsage {
			return out[i].DataUsage > out[j].DataUsage
		}
		return out[i].Hostname < out[j].Hostname
	})

	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
