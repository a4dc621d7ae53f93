package render

import (
	"sort"

	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

// Theme defines colors for tiers and leaf groups.
type Theme struct {
	Name   string
	Colors map[string]ThemeColor
}

// ThemeColor defines fill and stroke colors for an element type.
type ThemeColor struct {
	Fill   string
	Stroke string
	Font   string
}

var themes = map[string]*Theme{
	"default": {
		Name: "default",
		Colors: map[string]ThemeColor{
			"metro":       {Fill: "#FEE2E2", Stroke: "#DC2626", Font: "#991B1B"},
			"cdn":         {Fill: "#FFF7ED", Stroke: "#EA580C", Font: "#9A3412"},
			"core":        {Fill: "#EDE9FE", Stroke: "#7C3AED", Font: "#5B21B6"},
			"aggregation": {Fill: "#E0F2FE", Stroke: "#0284C7", Font: "#075985"},
			"edge":        {Fill: "#DCFCE7", Stroke: "#16A34A", Font: "#166534"},
			"hosts":       {Fill: "#F3F4F6", Stroke: "#6B7280", Font: "#374151"},
			"servers":     {Fill: "#FEF9C3", Stroke: "#CA8A04", Font: "#854D0E"},
		},
	},
	"dark": {
		Name: "dark",
		Colors: map[string]ThemeColor{
			"metro":       {Fill: "#450A0A", Stroke: "#EF4444", Font: "#FCA5A5"},
			"cdn":         {Fill: "#431407", Stroke: "#F97316", Font: "#FDBA74"},
			"core":        {Fill: "#2E1065", Stroke: "#A78BFA", Font: "#C4B5FD"},
			"aggregation": {Fill: "#082F49", Stroke: "#0EA5E9", Font: "#7DD3FC"},
			"edge":        {Fill: "#052E16", Stroke: "#22C55E", Font: "#86EFAC"},
			"hosts":       {Fill: "#1F2937", Stroke: "#9CA3AF", Font: "#D1D5DB"},
			"servers":     {Fill: "#422006", Stroke: "#EAB308", Font: "#FDE047"},
		},
	},
	"monochrome": {
		Name: "monochrome",
		Colors: map[string]ThemeColor{
			"metro":       {Fill: "#D1D5DB", Stroke: "#374151", Font: "#111827"},
			"cdn":         {Fill: "#D1D5DB", Stroke: "#374151", Font: "#111827"},
			"core":        {Fill: "#E5E7EB", Stroke: "#4B5563", Font: "#1F2937"},
			"aggregation": {Fill: "#F3F4F6", Stroke: "#6B7280", Font: "#374151"},
			"edge":        {Fill: "#F9FAFB", Stroke: "#9CA3AF", Font: "#4B5563"},
			"hosts":       {Fill: "#F3F4F6", Stroke: "#9CA3AF", Font: "#6B7280"},
			"servers":     {Fill: "#E5E7EB", Stroke: "#6B7280", Font: "#374151"},
		},
	},
	"ocean": {
		Name: "ocean",
		Colors: map[string]ThemeColor{
			"metro":       {Fill: "#C7D2FE", Stroke: "#4F46E5", Font: "#3730A3"},
			"cdn":         {Fill: "#CFFAFE", Stroke: "#0891B2", Font: "#155E75"},
			"core":        {Fill: "#DBEAFE", Stroke: "#2563EB", Font: "#1E40AF"},
			"aggregation": {Fill: "#E0F2FE", Stroke: "#0284C7", Font: "#075985"},
			"edge":        {Fill: "#F0F9FF", Stroke: "#38BDF8", Font: "#0369A1"},
			"hosts":       {Fill: "#F0F9FF", Stroke: "#7DD3FC", Font: "#0C4A6E"},
			"servers":     {Fill: "#E0F2FE", Stroke: "#0EA5E9", Font: "#0C4A6E"},
		},
	},
}

// ThemeNames returns all available theme names, sorted.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetTheme returns the named theme or the default.
func GetTheme(name string) *Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes["default"]
}

// ColorForTier returns the theme color for a switch tier.
func (t *Theme) ColorForTier(tier model.Tier) ThemeColor {
	if c, ok := t.Colors[tier.String()]; ok {
		return c
	}
	return t.Colors["edge"]
}

// ColorForElement returns the theme color for a named element.
func (t *Theme) ColorForElement(name string) ThemeColor {
	if c, ok := t.Colors[name]; ok {
		return c
	}
	return ThemeColor{Fill: "#F9FAFB", Stroke: "#D1D5DB", Font: "#111827"}
}
