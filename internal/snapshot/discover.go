// Package snapshot discovers the yearly ice-thickness rasters in a directory.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hydroglacier/glacierfrac/internal/constants"
)

// File is one thickness raster.
type File struct {
	Path      string
	GlacierID string
	Year      int
	Size      int64
	ModTime   int64
}

// Year groups every file for one calendar year.
type Year struct {
	Year  int
	Files []File
}

// Paths returns the source paths for the year.
func (y Year) Paths() []string {
	out := make([]string, len(y.Files))
	for i, f := range y.Files {
		out[i] = f.Path
	}
	return out
}

// ParseName extracts the glacier id and year from a snapshot file name of
// the form "<anything>_<glacier id>_<year>.<ext>".
func ParseName(name string) (glacierID string, year int, err error) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	n := len(stem)
	need := constants.GlacierIDLength + constants.YearDigits + 1
	if n < need || stem[n-constants.YearDigits-1] != '_' {
		return "", 0, fmt.Errorf("snapshot name %q does not end in _<glacier>_<year>", name)
	}

	year, err = strconv.Atoi(stem[n-constants.YearDigits:])
	if err != nil {
		return "", 0, fmt.Errorf("snapshot name %q has no 4-digit year: %w", name, err)
	}
	glacierID = stem[n-need : n-constants.YearDigits-1]
	return glacierID, year, nil
}

// Filter restricts discovery to a closed year range; zero bounds are open.
type Filter struct {
	FirstYear int
	LastYear  int
}

func (f Filter) keep(year int) bool {
	if f.FirstYear != 0 && year < f.FirstYear {
		return false
	}
	if f.LastYear != 0 && year > f.LastYear {
		return false
	}
	return true
}

// Discover lists files in dir matching pattern, grouped by year in
// ascending order. Files within a year are ordered by name.
func Discover(dir, pattern string, filter Filter) ([]Year, error) {
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)

	byYear := make(map[int][]File)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			continue
		}
		glacierID, year, err := ParseName(path)
		if err != nil {
			return nil, err
		}
		if !filter.keep(year) {
			continue
		}
		byYear[year] = append(byYear[year], File{
			Path:      path,
			GlacierID: glacierID,
			Year:      year,
			Size:      info.Size(),
			ModTime:   info.ModTime().UnixNano(),
		})
	}

	years := make([]Year, 0, len(byYear))
	for y, files := range byYear {
		years = append(years, Year{Year: y, Files: files})
	}
	sort.Slice(years, func(i, j int) bool { return years[i].Year < years[j].Year })
	return years, nil
}
