package source

import (
	"fmt"
	"time"
)

// MRMSBaseURL serves the latest MRMS products.
const MRMSBaseURL = "https://mrms.ncep.noaa.gov/data/2D"

// Product is an MRMS product published under MRMSBaseURL.
type Product struct {
	Name        string // directory and file stem, e.g. "MergedBaseReflectivity"
	Description string
	Units       string
}

// URL returns the address of the product's most recent file.
func (p Product) URL() string {
	return MRMSURL(p.Name)
}

// MRMSURL returns the ".latest" URL of the named MRMS product.
func MRMSURL(name string) string {
	return fmt.Sprintf("%s/%s/MRMS_%s.latest.grib2.gz", MRMSBaseURL, name, name)
}

// Products lists commonly used MRMS products.
var Products = []Product{
	{"MergedBaseReflectivity", "Base reflectivity, merged", "dBZ"},
	{"MergedBaseReflectivityQC", "Base reflectivity, merged and quality controlled", "dBZ"},
	{"MergedReflectivityQCComposite", "Composite reflectivity, quality controlled", "dBZ"},
	{"ReflectivityAtLowestAltitude", "Reflectivity at lowest altitude", "dBZ"},
	{"PrecipFlag", "Surface precipitation type", "flag"},
	{"PrecipRate", "Radar precipitation rate", "mm/hr"},
	{"RadarOnly_QPE_01H", "Radar-only QPE, last hour", "mm"},
	{"MultiSensor_QPE_01H_Pass2", "Multi-sensor QPE, last hour", "mm"},
	{"EchoTop_18", "18 dBZ echo top", "km"},
	{"VIL", "Vertically integrated liquid", "kg/m^2"},
	{"MESH", "Maximum expected size of hail", "mm"},
	{"RotationTrack60min", "Rotation track, 60 minutes", "1/s"},
	{"LightningProbabilityNext30minGrid", "Lightning probability, next 30 minutes", "%"},
}

// TypedReflectivityURLs returns the category and value products used by the
// typed reflectivity composite.
func TypedReflectivityURLs() (typeURL, reflURL string) {
	return MRMSURL("PrecipFlag"), MRMSURL("MergedBaseReflectivityQC")
}

const (
	rtmaURLFormat = "https://nomads.ncep.noaa.gov/pub/data/nccf/com/rtma/prod/rtma2p5_ru.%s/rtma2p5_ru.t%sz.2dvaranl_ndfd.grb2"

	// rtmaLag is how long NOMADS takes to publish a rapid-update analysis.
	rtmaLag = 17 * time.Minute
)

// RTMAURL returns the NOMADS 2.5 km rapid-update RTMA analysis for the
// 15-minute cycle containing t (in UTC).
func RTMAURL(t time.Time) string {
	t = t.UTC().Truncate(15 * time.Minute)
	return fmt.Sprintf(rtmaURLFormat, t.Format("20060102"), t.Format("1504"))
}

// RTMALatestURL returns the newest RTMA analysis expected to be published
// at now.
func RTMALatestURL(now time.Time) string {
	return RTMAURL(now.Add(-rtmaLag))
}
