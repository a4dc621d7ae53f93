package wizard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
)

// Run executes the interactive wizard and returns the user's answers.
func Run(detection DetectionResult) (*WizardAnswers, error) {
	answers := &WizardAnswers{
		Density:     15,
		Base:        "10.0.0.0/8",
		Scope:       "host-server",
		Verify:      true,
		Driver:      "script",
		Protocol:    "OpenFlow13",
		Parallelism: 4,
		Format:      "table",
		Theme:       "default",
		Direction:   "down",
		DetailLevel: "standard",
	}

	var hints []string
	if detection.OpenVSwitch() {
		answers.Driver = "ofctl"
		answers.OfctlPath = detection.OfctlPath
		answers.VsctlPath = detection.VsctlPath
		hints = append(hints, fmt.Sprintf("Open vSwitch found: %s", detection.OfctlPath))
	} else {
		hints = append(hints, "ovs-ofctl/ovs-vsctl not found, defaulting to the script driver")
	}
	if detection.D2Available {
		hints = append(hints, "d2 found, diagrams can be rendered")
	}
	if len(detection.Configs) > 0 {
		hints = append(hints, fmt.Sprintf("Existing configs: %s", strings.Join(detection.Configs, ", ")))
	}

	// Step 1: fabric shape
	density := strconv.Itoa(answers.Density)
	desc := "Hosts attached to each edge switch."
	if len(hints) > 0 {
		desc += "\n\nAuto-detected:\n  " + strings.Join(hints, "\n  ")
	}

	fabricForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Host density").
				Description(desc).
				Value(&density).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 || n > 254 {
						return fmt.Errorf("enter a number between 1 and 254")
					}
					return nil
				}),
			huh.NewInput().
				Title("Address base").
				Description("IPv4 /8 the host and server addresses are taken from").
				Value(&answers.Base),
			huh.NewSelect[string]().
				Title("Rule scope").
				Options(
					huh.NewOption("Host ↔ server paths only", "host-server"),
					huh.NewOption("Every destination on every switch", "all-pairs"),
				).
				Value(&answers.Scope),
			huh.NewConfirm().
				Title("Verify reachability after compiling?").
				Value(&answers.Verify),
		),
	)

	if err := fabricForm.Run(); err != nil {
		return nil, err
	}
	answers.Density, _ = strconv.Atoi(density)

	// Step 2: gateway and output
	var groups []*huh.Group

	groups = append(groups, huh.NewGroup(
		huh.NewSelect[string]().
			Title("Gateway driver").
			Options(
				huh.NewOption("Open vSwitch (ovs-ofctl)", "ofctl"),
				huh.NewOption("Script (print commands)", "script"),
			).
			Value(&answers.Driver),
		huh.NewSelect[string]().
			Title("OpenFlow version").
			Options(
				huh.NewOption("OpenFlow 1.3", "OpenFlow13"),
				huh.NewOption("OpenFlow 1.4", "OpenFlow14"),
				huh.NewOption("OpenFlow 1.5", "OpenFlow15"),
			).
			Value(&answers.Protocol),
	))

	groups = append(groups, huh.NewGroup(
		huh.NewSelect[string]().
			Title("Default output format").
			Options(
				huh.NewOption("Table", "table"),
				huh.NewOption("YAML", "yaml"),
				huh.NewOption("JSON", "json"),
				huh.NewOption("ovs-ofctl script", "ofctl"),
				huh.NewOption("D2 diagram", "d2"),
			).
			Value(&answers.Format),
		huh.NewSelect[string]().
			Title("Detail level").
			Options(
				huh.NewOption("Minimal — switches and counts only", "minimal"),
				huh.NewOption("Standard — rules and link bandwidths", "standard"),
				huh.NewOption("Detailed — every host, protocol and port", "detailed"),
			).
			Value(&answers.DetailLevel),
		huh.NewSelect[string]().
			Title("Diagram theme").
			Options(
				huh.NewOption("Default", "default"),
				huh.NewOption("Dark", "dark"),
				huh.NewOption("Monochrome", "monochrome"),
				huh.NewOption("Ocean", "ocean"),
			).
			Value(&answers.Theme),
		huh.NewSelect[string]().
			Title("Diagram direction").
			Options(
				huh.NewOption("Down (vertical)", "down"),
				huh.NewOption("Right (horizontal)", "right"),
			).
			Value(&answers.Direction),
	))

	if detection.D2Available {
		groups = append(groups, huh.NewGroup(
			huh.NewConfirm().
				Title("Render diagrams to SVG with d2?").
				Value(&answers.AutoRender),
		))
	}

	form := huh.NewForm(groups...)
	if err := form.Run(); err != nil {
		return nil, err
	}

	return answers, nil
}
