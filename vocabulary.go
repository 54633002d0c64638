package templatesheet

import (
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Icon names the presentation icon of a field type category.
type Icon string

const (
	IconType        Icon = "type"
	IconFileText    Icon = "file-text"
	IconHash        Icon = "hash"
	IconMail        Icon = "mail"
	IconPhone       Icon = "phone"
	IconLink        Icon = "link"
	IconCalendar    Icon = "calendar"
	IconClock       Icon = "clock"
	IconList        Icon = "list"
	IconCheckCircle Icon = "check-circle"
	IconToggle      Icon = "toggle-left"
	IconSignature   Icon = "signature"
	IconImage       Icon = "image"
	IconMapPin      Icon = "map-pin"
	IconStar        Icon = "star"
	IconDollar      Icon = "dollar-sign"
	IconPercent     Icon = "percent"
	IconUser        Icon = "user"
)

// Color tags a field type category.
type Color string

const (
	ColorBlue    Color = "blue"
	ColorGreen   Color = "green"
	ColorPurple  Color = "purple"
	ColorOrange  Color = "orange"
	ColorIndigo  Color = "indigo"
	ColorYellow  Color = "yellow"
	ColorPink    Color = "pink"
	ColorGray    Color = "gray"
	ColorEmerald Color = "emerald"
)

// Class returns the badge class pair used by the review UI.
func (c Color) Class() string { return "bg-" + string(c) + "-100 text-" + string(c) + "-800" }

type fieldTypeInfo struct {
	label string
	icon  Icon
	color Color
}

var fieldTypes = map[string]fieldTypeInfo{
	"textInput": {"Text Input", IconType, ColorBlue},
	"textarea":  {"Text Area", IconFileText, ColorBlue},
	"number":    {"Number", IconHash, ColorGreen},
	"email":     {"Email", IconMail, ColorPurple},
	"phone":     {"Phone", IconPhone, ColorPurple},
	"url":       {"URL", IconLink, ColorPurple},

	"date":     {"Date", IconCalendar, ColorOrange},
	"time":     {"Time", IconClock, ColorOrange},
	"datetime": {"Date/Time", IconCalendar, ColorOrange},

	"dropdown":    {"Dropdown", IconList, ColorIndigo},
	"radio":       {"Radio Group", IconCheckCircle, ColorIndigo},
	"checkbox":    {"Checkbox", IconCheckCircle, ColorIndigo},
	"multiSelect": {"Multi Select", IconList, ColorIndigo},
	"buttonBar":   {"Button Bar", IconToggle, ColorIndigo},

	"yesNo":  {"Yes/No", IconCheckCircle, ColorGreen},
	"toggle": {"Toggle", IconToggle, ColorGreen},
	"switch": {"Switch", IconToggle, ColorGreen},

	"lineItems": {"Line Items", IconList, ColorYellow},
	"signature": {"Signature", IconSignature, ColorPink},
	"file":      {"File Upload", IconFileText, ColorGray},
	"image":     {"Image Upload", IconImage, ColorGray},

	"calculated": {"Calculated Field", IconHash, ColorGray},
	"display":    {"Display Only", IconType, ColorGray},
	"hidden":     {"Hidden", IconType, ColorGray},

	"address":  {"Address", IconMapPin, ColorGray},
	"location": {"Location", IconMapPin, ColorGray},

	"rating": {"Rating", IconStar, ColorGray},
	"slider": {"Slider", IconToggle, ColorGray},

	"currency":   {"Currency", IconDollar, ColorEmerald},
	"percentage": {"Percentage", IconPercent, ColorEmerald},

	"userSelect":   {"User Select", IconUser, ColorGray},
	"entitySelect": {"Entity Select", IconUser, ColorGray},
}

const (
	defaultIcon  = IconType
	defaultColor = ColorGray
)

// DisplayLabel returns the human label of a field type code. Unknown codes are shown
// with the first letter upper-cased and the rest lower-cased.
func DisplayLabel(code string) string {
	if info, ok := fieldTypes[code]; ok {
		return info.label
	}
	if code == "" {
		return ""
	}
	_, size := utf8.DecodeRuneInString(code)
	return cases.Upper(language.Und).String(code[:size]) + cases.Lower(language.Und).String(code[size:])
}

// CategoryIcon returns the icon of a field type code.
func CategoryIcon(code string) Icon {
	if info, ok := fieldTypes[code]; ok {
		return info.icon
	}
	return defaultIcon
}

// CategoryColor returns the color tag of a field type code.
func CategoryColor(code string) Color {
	if info, ok := fieldTypes[code]; ok {
		return info.color
	}
	return defaultColor
}
