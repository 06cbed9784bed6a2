package novatel

import (
	"math"
	"strings"
)

type messageKey struct {
	id     uint32
	name   string
	format HeaderFormat
	source MeasurementSource
}

func (k messageKey) matches(format HeaderFormat, source MeasurementSource) bool {
	return (k.format == FormatAll || k.format == format) && k.source == source
}

type weekTime struct {
	week uint16
	ms   float64
}

func (t weekTime) before(o weekTime) bool {
	return t.week < o.week || (t.week == o.week && t.ms < o.ms)
}

// Filter decides which framed messages reach the body decoder. Criteria in
// different categories are ANDed; an empty category does not restrict.
type Filter struct {
	lower, upper   *weekTime
	invertTime     bool
	decimationMs   uint64
	invertDecimate bool
	timeStatuses   map[TimeStatus]struct{}
	invertStatus   bool
	ids            []messageKey
	invertIDs      bool
	names          []messageKey
	invertNames    bool
	includeNMEA    bool
}

// NewFilter returns a filter that passes everything.
func NewFilter() *Filter {
	return &Filter{timeStatuses: make(map[TimeStatus]struct{})}
}

// SetIncludeLowerTime drops messages earlier than week and seconds.
func (f *Filter) SetIncludeLowerTime(week uint16, seconds float64) {
	f.lower = &weekTime{week: week, ms: seconds * 1000}
}

// SetIncludeUpperTime drops messages later than week and seconds.
func (f *Filter) SetIncludeUpperTime(week uint16, seconds float64) {
	f.upper = &weekTime{week: week, ms: seconds * 1000}
}

// SetTimeWindow sets both bounds.
func (f *Filter) SetTimeWindow(lowerWeek uint16, lowerSeconds float64, upperWeek uint16, upperSeconds float64) {
	f.SetIncludeLowerTime(lowerWeek, lowerSeconds)
	f.SetIncludeUpperTime(upperWeek, upperSeconds)
}

func (f *Filter) InvertTimeFilter(invert bool) { f.invertTime = invert }

// SetIncludeDecimation keeps messages whose time is a multiple of periodMs.
// Zero disables decimation.
func (f *Filter) SetIncludeDecimation(periodMs uint64) { f.decimationMs = periodMs }

func (f *Filter) InvertDecimationFilter(invert bool) { f.invertDecimate = invert }

func (f *Filter) IncludeTimeStatus(statuses ...TimeStatus) {
	for _, s := range statuses {
		f.timeStatuses[s] = struct{}{}
	}
}

func (f *Filter) InvertTimeStatusFilter(invert bool) { f.invertStatus = invert }

// IncludeMessageID adds a message id. FormatAll matches every format.
func (f *Filter) IncludeMessageID(id uint32, format HeaderFormat, source MeasurementSource) {
	f.ids = append(f.ids, messageKey{id: id, format: format, source: source})
}

func (f *Filter) InvertMessageIDFilter(invert bool) { f.invertIDs = invert }

// IncludeMessageName adds a message name, matched case-insensitively.
func (f *Filter) IncludeMessageName(name string, format HeaderFormat, source MeasurementSource) {
	f.names = append(f.names, messageKey{name: strings.ToUpper(name), format: format, source: source})
}

func (f *Filter) InvertMessageNameFilter(invert bool) { f.invertNames = invert }

func (f *Filter) IncludeNMEAMessages(include bool) { f.includeNMEA = include }

// ClearFilters removes every criterion.
func (f *Filter) ClearFilters() {
	*f = Filter{timeStatuses: make(map[TimeStatus]struct{})}
}

func (f *Filter) empty() bool {
	return f.lower == nil && f.upper == nil && f.decimationMs == 0 &&
		len(f.timeStatuses) == 0 && len(f.ids) == 0 && len(f.names) == 0 && !f.includeNMEA
}

// Filter reports whether meta passes every configured criterion.
func (f *Filter) Filter(meta *MetaData) bool {
	if f == nil || meta == nil {
		return true
	}
	if meta.Format == FormatNMEA {
		return f.includeNMEA || f.empty()
	}
	return f.filterTime(meta) &&
		f.filterDecimation(meta) &&
		f.filterTimeStatus(meta) &&
		f.filterMessageID(meta) &&
		f.filterMessageName(meta)
}

func (f *Filter) filterTime(meta *MetaData) bool {
	if f.lower == nil && f.upper == nil {
		return true
	}
	t := weekTime{week: meta.Week, ms: meta.Milliseconds}
	inside := (f.lower == nil || !t.before(*f.lower)) && (f.upper == nil || !f.upper.before(t))
	return inside != f.invertTime
}

func (f *Filter) filterDecimation(meta *MetaData) bool {
	if f.decimationMs == 0 {
		return true
	}
	keep := uint64(math.Round(meta.Milliseconds))%f.decimationMs == 0
	return keep != f.invertDecimate
}

func (f *Filter) filterTimeStatus(meta *MetaData) bool {
	if len(f.timeStatuses) == 0 {
		return true
	}
	_, ok := f.timeStatuses[meta.TimeStatus]
	return ok != f.invertStatus
}

func (f *Filter) filterMessageID(meta *MetaData) bool {
	if len(f.ids) == 0 {
		return true
	}
	found := false
	for _, k := range f.ids {
		if k.id == uint32(meta.MessageID) && k.matches(meta.Format, meta.MeasurementSource) {
			found = true
			break
		}
	}
	return found != f.invertIDs
}

func (f *Filter) filterMessageName(meta *MetaData) bool {
	if len(f.names) == 0 {
		return true
	}
	name := strings.ToUpper(meta.MessageName)
	found := false
	for _, k := range f.names {
		if k.name == name && k.matches(meta.Format, meta.MeasurementSource) {
			found = true
			break
		}
	}
	return found != f.invertNames
}
