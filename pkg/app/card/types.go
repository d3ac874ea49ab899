package card

import (
	"fmt"

	"github.com/deploymenttheory/go-smartmedia/internal/ftl"
	"github.com/deploymenttheory/go-smartmedia/internal/medium"
	"github.com/deploymenttheory/go-smartmedia/internal/types"
	"github.com/deploymenttheory/go-smartmedia/pkg/app"
)

// Session selects a card image and the translation layer options to attach it with
type Session struct {
	ImagePath   string
	Policy      string
	WearSkip    int
	VerifyReads bool
	LazyMap     bool
}

// SessionFromConfig builds a Session from the loaded card configuration
func SessionFromConfig(cfg *medium.CardConfig) Session {
	return Session{
		ImagePath:   cfg.ImagePath,
		Policy:      cfg.WritePolicy,
		WearSkip:    cfg.WearSkip,
		VerifyReads: cfg.VerifyReads,
		LazyMap:     cfg.LazyMap,
	}
}

// Options converts the session settings into translation layer options
func (s Session) Options() (ftl.Options, error) {
	opts := ftl.DefaultOptions()
	if s.Policy != "" {
		policy, err := ftl.ParseWritePolicy(s.Policy)
		if err != nil {
			return opts, err
		}
		opts.Policy = policy
	}
	opts.WearSkip = s.WearSkip
	opts.VerifyReads = s.VerifyReads
	opts.LazyMap = s.LazyMap
	return opts, nil
}

// FormatRequest represents a request to create a blank card image
type FormatRequest struct {
	ImagePath    string
	DeviceID     int
	WriteProtect bool
	BadBlocks    []uint32
}

// FormatResponse describes the created image
type FormatResponse struct {
	ImagePath string       `json:"image_path" yaml:"image_path"`
	Geometry  GeometryInfo `json:"geometry" yaml:"geometry"`
	BadBlocks []uint32     `json:"bad_blocks,omitempty" yaml:"bad_blocks,omitempty"`
	Protected bool         `json:"write_protected" yaml:"write_protected"`
}

// GeometryInfo is the printable form of a card geometry
type GeometryInfo struct {
	DeviceID             string `json:"device_id" yaml:"device_id"`
	Name                 string `json:"name" yaml:"name"`
	PageSize             uint32 `json:"page_size" yaml:"page_size"`
	PagesPerBlock        uint32 `json:"pages_per_block" yaml:"pages_per_block"`
	TotalBlocks          uint32 `json:"total_blocks" yaml:"total_blocks"`
	Zones                uint32 `json:"zones" yaml:"zones"`
	LogicalBlocksPerZone uint32 `json:"logical_blocks_per_zone" yaml:"logical_blocks_per_zone"`
	UsableBlocks         uint32 `json:"usable_blocks" yaml:"usable_blocks"`
	ROM                  bool   `json:"rom" yaml:"rom"`
}

// NewGeometryInfo summarizes g
func NewGeometryInfo(g types.CardGeometry) GeometryInfo {
	return GeometryInfo{
		DeviceID:             fmt.Sprintf("0x%02x", g.DeviceID),
		Name:                 g.Name,
		PageSize:             g.PageSize(),
		PagesPerBlock:        g.PagesPerBlock(),
		TotalBlocks:          g.TotalBlocks(),
		Zones:                g.Zones(),
		LogicalBlocksPerZone: g.LogicalBlocksPerZone(),
		UsableBlocks:         g.UsableBlocks(),
		ROM:                  g.ROM,
	}
}

// DevicesResponse lists the supported device ids
type DevicesResponse struct {
	Devices []GeometryInfo `json:"devices" yaml:"devices"`
}

// InfoRequest represents a request for card and map status
type InfoRequest struct {
	Session Session
}

// InfoResponse reports capacity, protection and per-zone usage
type InfoResponse struct {
	ImagePath      string             `json:"image_path" yaml:"image_path"`
	SessionID      string             `json:"session_id" yaml:"session_id"`
	Policy         string             `json:"policy" yaml:"policy"`
	Geometry       GeometryInfo       `json:"geometry" yaml:"geometry"`
	Sectors        uint64             `json:"sectors" yaml:"sectors"`
	SectorSize     uint32             `json:"sector_size" yaml:"sector_size"`
	CapacityBytes  uint64             `json:"capacity_bytes" yaml:"capacity_bytes"`
	WriteProtected bool               `json:"write_protected" yaml:"write_protected"`
	MappedBlocks   int                `json:"mapped_blocks" yaml:"mapped_blocks"`
	Zones          []ftl.ZoneUsage    `json:"zones" yaml:"zones"`
	Wear           medium.WearSummary `json:"wear" yaml:"wear"`
}

// MapRequest represents a request to dump the translation table
type MapRequest struct {
	Session    Session
	Zone       int // -1 selects every zone
	MappedOnly bool
}

// MapEntry is one physical block of the table dump
type MapEntry struct {
	Pba   uint32  `json:"pba" yaml:"pba"`
	Zone  uint32  `json:"zone" yaml:"zone"`
	State string  `json:"state" yaml:"state"`
	Lba   *uint32 `json:"lba,omitempty" yaml:"lba,omitempty"`

	// Address stamped in the block, relative to its zone
	ZoneLba *uint16 `json:"zone_lba,omitempty" yaml:"zone_lba,omitempty"`
}

// MapResponse holds the dumped table
type MapResponse struct {
	ImagePath string     `json:"image_path" yaml:"image_path"`
	Entries   []MapEntry `json:"entries" yaml:"entries"`
	Mapped    int        `json:"mapped" yaml:"mapped"`
}

// ReadRequest represents a sector read
type ReadRequest struct {
	Session    Session
	Range      app.SectorRange
	OutputPath string
}

// ReadResponse holds the sectors read. Data is only rendered by the table format.
type ReadResponse struct {
	Sector     uint32            `json:"sector" yaml:"sector"`
	Count      uint32            `json:"count" yaml:"count"`
	Bytes      int               `json:"bytes" yaml:"bytes"`
	OutputPath string            `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	ZeroFilled uint64            `json:"zero_filled" yaml:"zero_filled"`
	Mismatches []ftl.EccMismatch `json:"ecc_mismatches,omitempty" yaml:"ecc_mismatches,omitempty"`
	Data       []byte            `json:"-" yaml:"-"`
}

// WriteRequest represents a sector write. Data takes precedence over InputPath.
type WriteRequest struct {
	Session   Session
	Sector    uint32
	InputPath string
	Data      []byte
}

// WriteResponse reports the written range and the device counters afterwards
type WriteResponse struct {
	Sector uint32    `json:"sector" yaml:"sector"`
	Count  uint32    `json:"count" yaml:"count"`
	Bytes  int       `json:"bytes" yaml:"bytes"`
	Padded int       `json:"padded" yaml:"padded"`
	Stats  ftl.Stats `json:"stats" yaml:"stats"`
}

// StatsRequest represents a verifying scan of every mapped block
type StatsRequest struct {
	Session Session
}

// MediumCounters are the raw transfer totals of the card
type MediumCounters struct {
	BytesRead    uint64 `json:"bytes_read" yaml:"bytes_read"`
	BytesWritten uint64 `json:"bytes_written" yaml:"bytes_written"`
	Erases       uint64 `json:"erases" yaml:"erases"`
	FailedWrites uint64 `json:"failed_writes" yaml:"failed_writes"`
}

// StatsResponse reports the scan results
type StatsResponse struct {
	ImagePath  string             `json:"image_path" yaml:"image_path"`
	Scanned    uint64             `json:"scanned_sectors" yaml:"scanned_sectors"`
	Stats      ftl.Stats          `json:"stats" yaml:"stats"`
	Mismatches []ftl.EccMismatch  `json:"ecc_mismatches,omitempty" yaml:"ecc_mismatches,omitempty"`
	Wear       medium.WearSummary `json:"wear" yaml:"wear"`
	Medium     MediumCounters     `json:"medium" yaml:"medium"`
	OpsTable   string             `json:"-" yaml:"-"`
}
