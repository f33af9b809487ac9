package format

import "strings"

// strftimeToGo maps strftime directives to Go reference-layout elements.
// The original rule files use strftime ({date:%m/%d/%Y}); Go layouts are
// accepted as-is.
var strftimeToGo = strings.NewReplacer(
	"%Y", "2006",
	"%y", "06",
	"%m", "01",
	"%d", "02",
	"%H", "15",
	"%M", "04",
	"%S", "05",
	"%b", "Jan",
	"%B", "January",
	"%a", "Mon",
	"%A", "Monday",
)

// TranslateLayout converts a strftime layout to Go reference form. Layouts
// without strftime directives pass through unchanged.
func TranslateLayout(layout string) string {
	if layout == "" {
		return ""
	}
	return strftimeToGo.Replace(layout)
}

// looksLikeDateLayout reports whether a translated layout contains at least
// one Go reference element, which distinguishes a layout from a typo'd type
// tag.
func looksLikeDateLayout(layout string) bool {
	for _, elem := range []string{"2006", "06", "01", "02", "Jan", "January", "15", "04", "05"} {
		if strings.Contains(layout, elem) {
			return true
		}
	}
	return false
}
