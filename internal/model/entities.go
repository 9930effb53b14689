package model

import (
	"strings"
	"time"
)

// Zone is a logical group of access points, typically a building.
type Zone struct {
	ZoneID     string
	ZoneName   string
	DomainID   string
	DomainName string

	TotalAPs        int64
	ConnectedAPs    int64
	DisconnectedAPs int64
	Clients         int64
	APAvailability  float64
	ClientsPerAP    float64

	ExperienceScore *float64
	Utilization     *float64
	RxDesense       *float64
	NetflixScore    *float64
}

func (z Zone) Point(ts time.Time) Point {
	return NewPoint(MeasurementZone, ts).
		Tag("zoneId", z.ZoneID).
		Tag("zoneName", z.ZoneName).
		Tag("domainId", z.DomainID).
		Tag("domainName", z.DomainName).
		Int("totalAPs", z.TotalAPs).
		Int("connectedAPs", z.ConnectedAPs).
		Int("disconnectedAPs", z.DisconnectedAPs).
		Int("clients", z.Clients).
		Float("apAvailability", z.APAvailability).
		Float("clientsPerAP", z.ClientsPerAP).
		OptFloat("experienceScore", z.ExperienceScore).
		OptFloat("utilization", z.Utilization).
		OptFloat("rxDesense", z.RxDesense).
		OptFloat("netflixScore", z.NetflixScore)
}

type AccessPoint struct {
	APMac    string
	APName   string
	ZoneID   string
	ZoneName string
	Model    string
	Status   string

	// Secondary state fields some controller versions report instead of status.
	APConnectionState string
	ConnectionState   string

	ClientCount    *int64
	ClientCount24G *int64
	ClientCount5G  *int64
	Airtime24G     *float64
	Airtime5G      *float64
	Noise24G       *float64
	Noise5G        *float64
	Channel24G     *int64
	Channel5G      *int64
	EIRP24G        *int64
	EIRP5G         *int64
	RxDesense24G   *float64
	RxDesense5G    *float64
}

// IsOffline treats an AP as offline unless one of its state fields says
// it is online or connected.
func (a AccessPoint) IsOffline() bool {
	states := []string{a.Status, a.APConnectionState, a.ConnectionState}
	for _, s := range states {
		if strings.EqualFold(s, "offline") {
			return true
		}
	}
	for _, s := range states {
		switch strings.ToLower(s) {
		case "online", "connected":
			return false
		}
	}
	return true
}

func (a AccessPoint) Point(ts time.Time) Point {
	return NewPoint(MeasurementAccessPoint, ts).
		Tag("apMac", a.APMac).
		Tag("apName", a.APName).
		Tag("zoneId", a.ZoneID).
		Tag("zoneName", a.ZoneName).
		Tag("model", a.Model).
		Tag("status", a.Status).
		OptInt("clientCount", a.ClientCount).
		OptInt("clientCount24G", a.ClientCount24G).
		OptInt("clientCount5G", a.ClientCount5G).
		OptFloat("airtime24G", a.Airtime24G).
		OptFloat("airtime5G", a.Airtime5G).
		OptFloat("noise24G", a.Noise24G).
		OptFloat("noise5G", a.Noise5G).
		OptInt("channel24G", a.Channel24G).
		OptInt("channel5G", a.Channel5G).
		OptInt("eirp24G", a.EIRP24G).
		OptInt("eirp5G", a.EIRP5G)
}

type Client struct {
	ClientMac string
	ZoneID    string
	APMac     string
	APName    string
	SSID      string
	OSType    string
	Hostname  string

	TxBytes int64
	RxBytes int64

	RSSI         *float64
	SNR          *float64
	UplinkRate   *float64
	DownlinkRate *float64
}

func (c Client) TxRxBytes() int64 {
	return c.TxBytes + c.RxBytes
}

// DisplayName is the hostname, or the MAC when the client reports none.
func (c Client) DisplayName() string {
	if c.Hostname != "" {
		return c.Hostname
	}
	return c.ClientMac
}

func (c Client) Point(ts time.Time) Point {
	return NewPoint(MeasurementClient, ts).
		Tag("clientMac", c.ClientMac).
		Tag("zoneId", c.ZoneID).
		Tag("apMac", c.APMac).
		Tag("apName", c.APName).
		Tag("ssid", c.SSID).
		Tag("osType", c.OSType).
		Int("txBytes", c.TxBytes).
		Int("rxBytes", c.RxBytes).
		Int("txRxBytes", c.TxRxBytes()).
		OptFloat("rssi", c.RSSI).
		OptFloat("snr", c.SNR).
		OptFloat("uplinkRate", c.UplinkRate).
		OptFloat("downlinkRate", c.DownlinkRate)
}

type DisconnectCause struct {
	APMac    string
	APName   string
	ZoneID   string
	ZoneName string
	Model    string

	CauseCode        int64
	CauseDescription string
	ImpactScore      *float64
}

func (d DisconnectCause) Point(ts time.Time) Point {
	p := NewPoint(MeasurementDisconnectCause, ts).
		Tag("apMac", d.APMac).
		Tag("apName", d.APName).
		Tag("zoneId", d.ZoneID).
		Tag("zoneName", d.ZoneName).
		Tag("model", d.Model).
		Tag("causeCode", formatInt(d.CauseCode)).
		Int("causeCode", d.CauseCode).
		OptFloat("impactScore", d.ImpactScore)
	if d.CauseDescription != "" {
		p = p.Text("causeDescription", d.CauseDescription)
	}
	return p
}

// Venue is the single per-cycle roll-up of all zones.
type Venue struct {
	TotalZones         int64
	TotalAPs           int64
	TotalClients       int64
	AvgExperienceScore *float64
	SLACompliance      float64
}

func (v Venue) Point(ts time.Time) Point {
	return NewPoint(MeasurementVenue, ts).
		Int("totalZones", v.TotalZones).
		Int("totalAPs", v.TotalAPs).
		Int("totalClients", v.TotalClients).
		OptFloat("avgExperienceScore", v.AvgExperienceScore).
		Float("slaCompliance", v.SLACompliance)
}

type OsDistributionEntry struct {
	OS         string
	Count      int
	Percentage float64
}

func (o OsDistributionEntry) Point(ts time.Time) Point {
	return NewPoint(MeasurementOsDistribution, ts).
		Tag("os", o.OS).
		Float("percentage", o.Percentage)
}

type HostUsageEntry struct {
	Hostname  string
	DataUsage float64
}

func (h HostUsageEntry) Point(ts time.Time) Point {
	return NewPoint(MeasurementHostUsage, ts).
		Tag("hostname", h.Hostname).
		Float("dataUsage", h.DataUsage)
}
