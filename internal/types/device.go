package types

import (
	"github.com/google/uuid"
)

type InstrumentProfileDefinition struct {
	Profile    ProfileInfo          `json:"instrument_profile"`
	Kind       InstrumentKind       `json:"kind"`
	Triggering *TriggeringConfig    `json:"triggering,omitempty"`
	Properties []PropertyDefinition `json:"properties"`
}

type ProfileInfo struct {
	ID          string `json:"id"`
	Vendor      string `json:"vendor"`
	Model       string `json:"model"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

type InstrumentKind string

const (
	KindCamera      InstrumentKind = "camera"
	KindLaser       InstrumentKind = "laser"
	KindFilterWheel InstrumentKind = "filterwheel"
	KindMirror      InstrumentKind = "deformable_mirror"
)

// TriggeringConfig is present only for frame-producing instruments.
type TriggeringConfig struct {
	Combinations   []TriggerCombination `json:"supported_combinations"`
	BufferCapacity int                  `json:"buffer_capacity,omitempty"`
	FramePeriodMs  int                  `json:"frame_period_ms,omitempty"`
}

type TriggerCombination struct {
	Mode string `json:"mode"`
	Type string `json:"type"`
}

type PropertyDefinition struct {
	Name           string       `json:"name"`
	DataType       DataType     `json:"data_type"`
	Unit           string       `json:"unit,omitempty"`
	Min            *float64     `json:"min,omitempty"`
	Max            *float64     `json:"max,omitempty"`
	Access         AccessType   `json:"access"`
	LiveAdjustable bool         `json:"live_adjustable"`
	Default        any          `json:"default,omitempty"`
	Description    string       `json:"description,omitempty"`
}

type DataType string

const (
	DataTypeBool    DataType = "bool"
	DataTypeInt     DataType = "int"
	DataTypeFloat64 DataType = "float64"
	DataTypeString  DataType = "string"
)

type AccessType string

const (
	AccessTypeReadOnly  AccessType = "read_only"
	AccessTypeReadWrite AccessType = "read_write"
)

// Device Runtime Info
type DeviceInfo struct {
	ID          uuid.UUID
	Name        string
	Kind        InstrumentKind
	Profile     string
	DataCapable bool
}
