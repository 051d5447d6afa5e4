package riot

import (
	"fmt"
	"strings"

	"lol-tracker/internal/errs"
)

// Routing keys select the regional host for account and match endpoints.
const (
	RoutingAmericas = "americas"
	RoutingEurope   = "europe"
	RoutingAsia     = "asia"
	RoutingSEA      = "sea"
)

var regionRouting = map[string]string{
	"na1":  RoutingAmericas,
	"br1":  RoutingAmericas,
	"la1":  RoutingAmericas,
	"la2":  RoutingAmericas,
	"euw1": RoutingEurope,
	"eun1": RoutingEurope,
	"tr1":  RoutingEurope,
	"ru":   RoutingEurope,
	"me1":  RoutingEurope,
	"kr":   RoutingAsia,
	"jp1":  RoutingAsia,
	"oc1":  RoutingSEA,
	"ph2":  RoutingSEA,
	"sg2":  RoutingSEA,
	"th2":  RoutingSEA,
	"tw2":  RoutingSEA,
	"vn2":  RoutingSEA,
}

// RoutingFor resolves a user-facing region code (e.g. "na1") to its routing key.
// Routing keys themselves are accepted unchanged.
func RoutingFor(region string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(region))
	switch key {
	case RoutingAmericas, RoutingEurope, RoutingAsia, RoutingSEA:
		return key, nil
	}
	if routing, ok := regionRouting[key]; ok {
		return routing, nil
	}
	return "", fmt.Errorf("unknown region %q: %w", region, errs.ErrMalformedInput)
}
