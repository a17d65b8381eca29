package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&TrackPoint{},
	&TraceReset{},
}

// Session is one recording run covering both pipelines
type Session struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt time.Time      `json:"createdAt"`
	Name      string         `json:"name" gorm:"size:128"`
	Tag       string         `json:"tag" gorm:"size:64"`
	StartTime time.Time      `json:"startTime" gorm:"index:idx_session_start"`
	Frame     int            `json:"frame"`    // EPSG code of the projected columns
	Capacity  int            `json:"capacity"` // trace capacity per pipeline
	Settings  datatypes.JSON `json:"settings"`
}

func (*Session) TableName() string {
	return "sessions"
}

// TrackPoint is one accepted position sample
type TrackPoint struct {
	ID         uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time  `json:"time" gorm:"index:idx_trackpoint_time"`
	SessionID  uint       `json:"sessionId" gorm:"index:idx_trackpoint_session_id"`
	Session    Session    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Role       string     `json:"role" gorm:"size:16;index:idx_trackpoint_role"`
	Reserved   uint8      `json:"reserved"`
	Longitude  float64    `json:"longitude"`
	Latitude   float64    `json:"latitude"`
	Heading    float64    `json:"heading"`
	Position   geom.Point `json:"position"` // projected XYZ in the session frame
	TraceLen   int        `json:"traceLen"`
	Suppressed bool       `json:"suppressed"`
}

func (*TrackPoint) TableName() string {
	return "track_points"
}

// TraceReset records a trace overflow
type TraceReset struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_tracereset_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Role      string    `json:"role" gorm:"size:16"`
	Discarded int       `json:"discarded"`
	Policy    string    `json:"policy" gorm:"size:16"`
}

func (*TraceReset) TableName() string {
	return "trace_resets"
}
