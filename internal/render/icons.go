package render

import "github.com/Huangmachi/exp-IPMAN/internal/model"

const terrastruct = "https://icons.terrastruct.com"

// iconRegistry maps node kinds to icon URLs.
var iconRegistry = map[model.NodeKind]string{
	model.NodeSwitch: terrastruct + "/essentials/092-network.svg",
	model.NodeServer: terrastruct + "/essentials/112-server.svg",
	model.NodeHost:   terrastruct + "/tech/laptop.svg",
}

// LookupIcon returns the icon URL for a node kind.
func LookupIcon(kind model.NodeKind) string {
	return iconRegistry[kind]
}
