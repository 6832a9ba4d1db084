package domain

import "strings"

// SpatialRef names a coordinate reference system and carries a definition the
// projection engine understands (an EPSG code or WKT).
type SpatialRef struct {
	Name       string
	Definition string
}

// IsGeographic reports whether r is the standard geographic reference.
func (r SpatialRef) IsGeographic() bool {
	return r.Definition == Geographic.Definition
}

// Geographic is WGS-84 longitude/latitude.
var Geographic = SpatialRef{Name: "WGS 84", Definition: "EPSG:4326"}

// LambertDMI is the fixed grid of the DMI HARMONIE DINI model, see
// https://opendatadocs.dmi.govcloud.dk/Data/Forecast_Data_Weather_Model_HARMONIE_DINI_IG
var LambertDMI = SpatialRef{Name: "DMI HARMONIE DINI lambert projection", Definition: lambertDMIWKT}

const lambertDMIWKT = `PROJCRS["DMI HARMONIE DINI lambert projection",
BASEGEOGCRS["DMI HARMONIE DINI lambert CRS",
    DATUM["DMI HARMONIE DINI lambert datum",
        ELLIPSOID["Sphere",6371229,0,
            LENGTHUNIT["metre",1,
                ID["EPSG",9001]]]],
    PRIMEM["Greenwich",0,
        ANGLEUNIT["degree",0.0174532925199433,
            ID["EPSG",9122]]]],
CONVERSION["Lambert Conic Conformal (2SP)",
    METHOD["Lambert Conic Conformal (2SP)",
        ID["EPSG",9802]],
    PARAMETER["Latitude of false origin",55.5,
        ANGLEUNIT["degree",0.0174532925199433],
        ID["EPSG",8821]],
    PARAMETER["Longitude of false origin",-8,
        ANGLEUNIT["degree",0.0174532925199433],
        ID["EPSG",8822]],
    PARAMETER["Latitude of 1st standard parallel",55.5,
        ANGLEUNIT["degree",0.0174532925199433],
        ID["EPSG",8823]],
    PARAMETER["Latitude of 2nd standard parallel",55.5,
        ANGLEUNIT["degree",0.0174532925199433],
        ID["EPSG",8824]],
    PARAMETER["Easting at false origin",0,
        LENGTHUNIT["metre",1],
        ID["EPSG",8826]],
    PARAMETER["Northing at false origin",0,
        LENGTHUNIT["metre",1],
        ID["EPSG",8827]]],
CS[Cartesian,2],
    AXIS["(E)",east,
        ORDER[1],
        LENGTHUNIT["Metre",1]],
    AXIS["(N)",north,
        ORDER[2],
        LENGTHUNIT["Metre",1]]]`

// Strategy tells the pipeline how a collection's grid is delivered.
type Strategy int

const (
	// StrategyGeographic collections are requested and delivered as crs84.
	StrategyGeographic Strategy = iota
	// StrategyNative collections arrive on their model grid and are reprojected.
	StrategyNative
)

func (s Strategy) String() string {
	if s == StrategyNative {
		return "native"
	}
	return "geographic"
}

// CRSHint is the crs query value for the strategy.
func (s Strategy) CRSHint() string {
	if s == StrategyNative {
		return CRSNative
	}
	return CRSGeographic
}

// ProjectionRule maps a collection-name prefix to a strategy.
type ProjectionRule struct {
	Prefix   string
	Strategy Strategy
}

// ProjectionPolicy resolves the strategy for a collection. The first rule
// whose prefix matches wins; unmatched collections are geographic.
type ProjectionPolicy []ProjectionRule

// DefaultProjectionPolicy covers the DMI model families.
var DefaultProjectionPolicy = ProjectionPolicy{
	{Prefix: "harmonie", Strategy: StrategyNative},
}

// StrategyFor returns the strategy for collection.
func (p ProjectionPolicy) StrategyFor(collection string) Strategy {
	for _, r := range p {
		if strings.HasPrefix(collection, r.Prefix) {
			return r.Strategy
		}
	}
	return StrategyGeographic
}
