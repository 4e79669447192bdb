package forensic

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// exifTimeLayout is the fixed EXIF wall-clock format, with no timezone.
const exifTimeLayout = "2006:01:02 15:04:05"

// rational is the EXIF-native (numerator, denominator) integer pair used for
// GPS coordinates and exposure fields.
type rational struct {
	Num int64
	Den int64
}

func (r rational) value() (float64, bool) {
	if r.Den == 0 {
		return 0, false
	}
	return float64(r.Num) / float64(r.Den), true
}

// extractMetadata decodes the EXIF block of an image into typed sub-records.
// A missing or malformed block is not an error: legitimately authentic images
// (screenshots, stripped exports) often carry no metadata, and they must
// still be analyzable for tampering. Every failure at this layer becomes an
// absent field; nothing propagates.
func extractMetadata(data []byte) (GeoCoordinates, CameraInfo, TimestampRecord) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil || x == nil {
		return GeoCoordinates{}, CameraInfo{}, TimestampRecord{}
	}
	return extractGPS(x), extractCamera(x), extractTimestamps(x)
}

// extractGPS decodes latitude, longitude and altitude. A coordinate with
// only one of latitude/longitude is treated as wholly absent.
func extractGPS(x *exif.Exif) GeoCoordinates {
	lat, latOK := dmsTag(x, exif.GPSLatitude)
	lon, lonOK := dmsTag(x, exif.GPSLongitude)
	if !latOK || !lonOK {
		return GeoCoordinates{}
	}
	latRef := textTagOr(x, exif.GPSLatitudeRef, "N")
	lonRef := textTagOr(x, exif.GPSLongitudeRef, "E")
	latitude, ok := decimalDegrees(lat, latRef)
	if !ok {
		return GeoCoordinates{}
	}
	longitude, ok := decimalDegrees(lon, lonRef)
	if !ok {
		return GeoCoordinates{}
	}
	out := GeoCoordinates{Latitude: &latitude, Longitude: &longitude}
	if alt, ok := ratTag(x, exif.GPSAltitude); ok {
		if v, ok := alt.value(); ok {
			out.Altitude = &v
		}
	}
	return out
}

// decimalDegrees converts a degrees/minutes/seconds rational triple plus a
// hemisphere reference into signed decimal degrees. Southern and western
// references negate the result.
func decimalDegrees(dms [3]rational, ref string) (float64, bool) {
	deg, ok := dms[0].value()
	if !ok {
		return 0, false
	}
	min, ok := dms[1].value()
	if !ok {
		return 0, false
	}
	sec, ok := dms[2].value()
	if !ok {
		return 0, false
	}
	decimal := deg + min/60.0 + sec/3600.0
	if ref == "S" || ref == "W" {
		decimal = -decimal
	}
	return decimal, true
}

func extractCamera(x *exif.Exif) CameraInfo {
	var info CameraInfo
	if v, ok := textTag(x, exif.Make); ok {
		info.Make = &v
	}
	if v, ok := textTag(x, exif.Model); ok {
		info.Model = &v
	}
	if v, ok := textTag(x, exif.LensModel); ok {
		info.Lens = &v
	}
	if iso, ok := intTag(x, exif.ISOSpeedRatings); ok {
		info.ISO = &iso
	}
	if f, ok := ratTag(x, exif.FNumber); ok {
		if v, ok := f.value(); ok {
			info.Aperture = &v
		}
	}
	if exposure, ok := ratTag(x, exif.ExposureTime); ok && exposure.Den != 0 {
		v := shutterSpeed(exposure)
		info.ShutterSpeed = &v
	}
	return info
}

// shutterSpeed renders an exposure time as the conventional fraction string,
// "1/125" style when the numerator is one.
func shutterSpeed(r rational) string {
	if r.Num == 1 {
		return fmt.Sprintf("1/%d", r.Den)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func extractTimestamps(x *exif.Exif) TimestampRecord {
	original := timeTag(x, exif.DateTimeOriginal)
	digitized := timeTag(x, exif.DateTimeDigitized)
	// Modified mirrors the digitized tag; the report format has always
	// carried both fields with this sourcing.
	return TimestampRecord{
		Original:  original,
		Modified:  digitized,
		Digitized: digitized,
	}
}

// parseExifTime parses the fixed EXIF layout, returning nil for anything that
// does not match exactly. EXIF times carry no zone, so they parse as UTC.
func parseExifTime(s string) *time.Time {
	t, err := time.Parse(exifTimeLayout, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

// Tag access helpers. goexif surfaces every miss as an error; here each miss
// collapses to an absent value so callers stay branch-free.

func ratTag(x *exif.Exif, name exif.FieldName) (rational, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return rational{}, false
	}
	num, den, err := tag.Rat2(0)
	if err != nil {
		return rational{}, false
	}
	return rational{Num: num, Den: den}, true
}

func dmsTag(x *exif.Exif, name exif.FieldName) ([3]rational, bool) {
	tag, err := x.Get(name)
	if err != nil || tag.Count < 3 {
		return [3]rational{}, false
	}
	var out [3]rational
	for i := 0; i < 3; i++ {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return [3]rational{}, false
		}
		out[i] = rational{Num: num, Den: den}
	}
	return out, true
}

func intTag(x *exif.Exif, name exif.FieldName) (int, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, false
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0, false
	}
	return v, true
}

// textTag decodes a text field permissively: invalid byte sequences are
// replaced rather than rejected, and surrounding whitespace and NULs are
// trimmed. Empty results count as absent.
func textTag(x *exif.Exif, name exif.FieldName) (string, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil {
		s = string(tag.Val)
	}
	s = strings.Trim(strings.ToValidUTF8(s, "�"), " \t\r\n\x00")
	if s == "" {
		return "", false
	}
	return s, true
}

func textTagOr(x *exif.Exif, name exif.FieldName, def string) string {
	if v, ok := textTag(x, name); ok {
		return v
	}
	return def
}

func timeTag(x *exif.Exif, name exif.FieldName) *time.Time {
	v, ok := textTag(x, name)
	if !ok {
		return nil
	}
	return parseExifTime(v)
}
