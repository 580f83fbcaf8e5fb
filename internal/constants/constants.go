// Package constants defines application-wide constants and version information.
package constants

import (
	"runtime"
	"time"
)

// Version holds the application version information
const Version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH

// IceLandCoverClass is the land-cover code for glacier ice in the HRU land-use raster.
const IceLandCoverClass = 7

// Hydrological calendar anchors. A hydrological year Y runs from
// 1 October of Y-1 through 30 September of Y; the ablation ramp starts on
// 1 March of Y.
const (
	HydroYearStartMonth = time.October
	HydroYearStartDay   = 1
	HydroYearEndMonth   = time.September
	HydroYearEndDay     = 30
	RampStartMonth      = time.March
	RampStartDay        = 1
)

// Snapshot file names end in "_<glacier id>_<year>.<ext>".
const (
	YearDigits      = 4
	GlacierIDLength = 5
)

// DateLayout is used for the daily table index and its file name.
const DateLayout = "2006-01-02"
