package card

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rodaine/table"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-smartmedia/internal/ftl"
)

// tableWriter is implemented by every response type
type tableWriter interface {
	WriteTable(w io.Writer) error
}

// FormatOutput writes a response according to the output format
func FormatOutput(w io.Writer, response any, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table":
		tw, ok := response.(tableWriter)
		if !ok {
			return fmt.Errorf("no table layout for %T", response)
		}
		return tw.WriteTable(w)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatJSON formats results as JSON
func formatJSON(w io.Writer, response any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// formatYAML formats results as YAML
func formatYAML(w io.Writer, response any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}

func writeGeometry(w io.Writer, g GeometryInfo) {
	tbl := table.New("Property", "Value").WithWriter(w)
	tbl.AddRow("Device ID", g.DeviceID)
	tbl.AddRow("Capacity class", g.Name)
	tbl.AddRow("Page size", g.PageSize)
	tbl.AddRow("Pages per block", g.PagesPerBlock)
	tbl.AddRow("Physical blocks", g.TotalBlocks)
	tbl.AddRow("Zones", g.Zones)
	tbl.AddRow("Logical blocks per zone", g.LogicalBlocksPerZone)
	tbl.AddRow("Usable blocks", g.UsableBlocks)
	tbl.AddRow("Mask ROM", g.ROM)
	tbl.Print()
}

// WriteTable renders the format result
func (r *FormatResponse) WriteTable(w io.Writer) error {
	fmt.Fprintf(w, "Formatted %s\n\n", r.ImagePath)
	writeGeometry(w, r.Geometry)
	if len(r.BadBlocks) > 0 {
		fmt.Fprintf(w, "\nPre-marked bad blocks: %v\n", r.BadBlocks)
	}
	if r.Protected {
		fmt.Fprintln(w, "Write protect seal set")
	}
	return nil
}

// WriteTable renders one row per device id
func (r *DevicesResponse) WriteTable(w io.Writer) error {
	tbl := table.New("Device ID", "Capacity", "Page", "Pages/block", "Blocks", "Zones", "Mask ROM").WithWriter(w)
	for _, g := range r.Devices {
		tbl.AddRow(g.DeviceID, g.Name, g.PageSize, g.PagesPerBlock, g.TotalBlocks, g.Zones, g.ROM)
	}
	tbl.Print()
	return nil
}

// WriteTable renders capacity and zone usage
func (r *InfoResponse) WriteTable(w io.Writer) error {
	fmt.Fprintf(w, "Card image: %s (session %s)\n\n", r.ImagePath, r.SessionID)
	writeGeometry(w, r.Geometry)

	fmt.Fprintln(w)
	tbl := table.New("Property", "Value").WithWriter(w)
	tbl.AddRow("Sectors", r.Sectors)
	tbl.AddRow("Sector size", r.SectorSize)
	tbl.AddRow("Capacity", formatBytes(r.CapacityBytes))
	tbl.AddRow("Write protected", r.WriteProtected)
	tbl.AddRow("Write policy", r.Policy)
	tbl.AddRow("Mapped blocks", r.MappedBlocks)
	tbl.AddRow("Erases (min/max/mean)", fmt.Sprintf("%d/%d/%.2f", r.Wear.MinErases, r.Wear.MaxErases, r.Wear.MeanErases))
	tbl.Print()

	fmt.Fprintln(w)
	zones := table.New("Zone", "Mapped", "Free", "Spare", "Unusable", "Bad").WithWriter(w)
	for _, z := range r.Zones {
		zones.AddRow(z.Zone, z.Mapped, z.Free, z.Spare, z.Unusable, z.Bad)
	}
	zones.Print()
	return nil
}

// WriteTable renders the table dump
func (r *MapResponse) WriteTable(w io.Writer) error {
	if len(r.Entries) == 0 {
		fmt.Fprintln(w, "No blocks match the selection.")
		return nil
	}
	tbl := table.New("PBA", "Zone", "State", "LBA", "Zone LBA").WithWriter(w)
	for _, e := range r.Entries {
		lba, rel := "-", "-"
		if e.Lba != nil {
			lba = fmt.Sprint(*e.Lba)
		}
		if e.ZoneLba != nil {
			rel = fmt.Sprint(*e.ZoneLba)
		}
		tbl.AddRow(e.Pba, e.Zone, e.State, lba, rel)
	}
	tbl.Print()
	fmt.Fprintf(w, "\n%d of %d listed blocks mapped\n", r.Mapped, len(r.Entries))
	return nil
}

// WriteTable renders a hex dump, or a summary when the data went to a file
func (r *ReadResponse) WriteTable(w io.Writer) error {
	if r.OutputPath == "" {
		if _, err := io.WriteString(w, hex.Dump(r.Data)); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "Saved %d bytes to %s\n", r.Bytes, r.OutputPath)
	}
	for _, m := range r.Mismatches {
		fmt.Fprintf(w, "warning: %v\n", m)
	}
	return nil
}

// WriteTable renders the write summary
func (r *WriteResponse) WriteTable(w io.Writer) error {
	fmt.Fprintf(w, "Wrote %d bytes to %d sectors at %d", r.Bytes, r.Count, r.Sector)
	if r.Padded > 0 {
		fmt.Fprintf(w, " (%d bytes of zero padding)", r.Padded)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
	writeStats(w, r.Stats)
	return nil
}

// WriteTable renders the scan results and the raw operation counters
func (r *StatsResponse) WriteTable(w io.Writer) error {
	fmt.Fprintf(w, "Scanned %d sectors of %s\n\n", r.Scanned, r.ImagePath)
	writeStats(w, r.Stats)

	if len(r.Mismatches) > 0 {
		fmt.Fprintln(w)
		tbl := table.New("PBA", "Page", "First half", "Second half").WithWriter(w)
		for _, m := range r.Mismatches {
			tbl.AddRow(uint32(m.Pba), m.Page, m.FirstHalf, m.SecondHalf)
		}
		tbl.Print()
	}

	fmt.Fprintln(w)
	_, err := io.WriteString(w, r.OpsTable)
	return err
}

func writeStats(w io.Writer, s ftl.Stats) {
	tbl := table.New("Counter", "Value").WithWriter(w)
	tbl.AddRow("Sectors read", s.SectorsRead)
	tbl.AddRow("Sectors written", s.SectorsWritten)
	tbl.AddRow("Zero-filled sectors", s.ZeroFilled)
	tbl.AddRow("Block writes", s.BlockWrites)
	tbl.AddRow("Remaps", s.Remaps)
	tbl.AddRow("Substitutions", s.Substitutions)
	tbl.AddRow("ECC mismatches", s.EccMismatches)
	tbl.AddRow("Bad blocks", s.BadBlocks)
	tbl.AddRow("Medium full", s.MediumFull)
	tbl.AddRow("Mapped blocks", s.MappedBlocks)
	tbl.AddRow("Faulted", s.Faulted)
	tbl.Print()
}

// formatBytes formats byte count as human readable
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
