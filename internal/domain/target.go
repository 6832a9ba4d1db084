package domain

import (
	"path"
	"strings"
)

// ManifestName is the object name of the manifest within a target.
const ManifestName = "forecasts.json"

// Content types of published objects.
const (
	ContentTypeGeoTIFF = "image/tiff; application=geotiff; profile=cloud-optimized"
	ContentTypeJSON    = "application/json"
)

// PublicationTarget is the storage scope one (collection, parameter) run owns.
type PublicationTarget struct {
	Bucket     string
	BasePath   string
	Collection string
	Parameter  string
}

// Prefix is the object-key prefix of the target, without bucket.
func (t PublicationTarget) Prefix() string {
	return path.Join(strings.Trim(t.BasePath, "/"), t.Collection, t.Parameter)
}

// BandObjectKey is the object key of a band.
func (t PublicationTarget) BandObjectKey(key string) string {
	return path.Join(t.Prefix(), key+".tif")
}

// ManifestKey is the object key of the manifest.
func (t PublicationTarget) ManifestKey() string {
	return path.Join(t.Prefix(), ManifestName)
}

// String renders the target as {bucket}/{prefix}.
func (t PublicationTarget) String() string {
	return t.Bucket + "/" + t.Prefix()
}
