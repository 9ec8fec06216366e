package objstore

import (
	"fmt"
	"time"
)

// Object key formats are part of the pipeline contract:
//
//	frames:       DD-MM-YYYY/<epoch-ms>.png
//	detections:   DD-MM-YYYY/face_<HHMMSSffffff>_<seq>.png
//	recognitions: <uuid>/face_<YYYYmmdd_HHMMSSffffff>.png

const dayLayout = "02-01-2006"

// DayFolder formats t as the DD-MM-YYYY prefix shared by frame and crop keys.
func DayFolder(t time.Time) string {
	return t.Format(dayLayout)
}

// FrameKey builds the object key for a full captured frame.
func FrameKey(t time.Time) string {
	return fmt.Sprintf("%s/%d.png", DayFolder(t), t.UnixMilli())
}

// CropKey builds the object key for a detected face crop. seq disambiguates
// crops of one frame minted in the same microsecond by the concurrent
// upload pool.
func CropKey(t time.Time, seq int) string {
	return fmt.Sprintf("%s/face_%s%06d_%d.png", DayFolder(t), t.Format("150405"), t.Nanosecond()/1000, seq)
}

// RecognitionKey builds the object key for a recognized face image filed
// under its identity.
func RecognitionKey(identityUUID string, t time.Time) string {
	return fmt.Sprintf("%s/face_%s_%s%06d.png", identityUUID, t.Format("20060102"), t.Format("150405"), t.Nanosecond()/1000)
}
