package rlv

import (
	"strings"

	env "github.com/samuelfneumann/rlv/environment"
)

// Profile describes a family of environments. The Profile determines
// how rewards are assigned to action-free transitions and how the
// action dimension is read from the environment's action Spec.
type Profile int

const (
	GenericProfile Profile = iota
	AcrobotProfile
	RoboticArmProfile
)

// String implements the fmt.Stringer interface
func (p Profile) String() string {
	switch p {
	case AcrobotProfile:
		return "acrobot"
	case RoboticArmProfile:
		return "robotic_arm"
	}
	return "generic"
}

// ParseProfile returns the Profile of the environment with the given
// name. If no Profile matches, ParseProfile returns GenericProfile and
// false.
func ParseProfile(name string) (Profile, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.Contains(name, "acrobot"):
		return AcrobotProfile, true

	case strings.Contains(name, "franka"),
		strings.Contains(name, "franca"),
		strings.Contains(name, "multi_world"),
		name == RoboticArmProfile.String():
		return RoboticArmProfile, true

	case name == "generic", name == "mujoco", name == "gym":
		return GenericProfile, true
	}
	return GenericProfile, false
}

// Relabel returns the reward assigned to an action-free transition
// with the given signal
func (p Profile) Relabel(signal float64) float64 {
	switch p {
	case AcrobotProfile:
		if signal > -1 {
			return 10
		}
		return -1

	case RoboticArmProfile:
		return 100
	}

	if signal > -1 {
		return 10
	}
	return 0
}

// Relabel returns the reward the Profile p assigns to an action-free
// transition with the given signal
func Relabel(signal float64, p Profile) float64 {
	return p.Relabel(signal)
}

// ActionDims returns the dimension of actions described by spec.
// Robotic arm environments describe actions along the first axis of
// their Spec and all others along the last axis.
func (p Profile) ActionDims(spec env.Spec) int {
	if len(spec.Shape) == 0 {
		return 0
	}
	if p == RoboticArmProfile {
		return spec.Shape[0]
	}
	return spec.Shape[len(spec.Shape)-1]
}
