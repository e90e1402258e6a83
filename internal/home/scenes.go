package home

import "strings"

// SceneControlID is the pseudo-device recorded for scene activations.
const SceneControlID = "scene_control"

type scene struct {
	Name       string
	LightOn    bool
	Brightness int // 0 leaves brightness unchanged
	Target     float64
	DoorState  string
	Actions    []string
}

var scenes = []scene{
	{
		Name:       "evening",
		LightOn:    true,
		Brightness: 70,
		Target:     19.0,
		DoorState:  "locked",
		Actions:    []string{"Living room light on at 70%", "Temperature set to 19°C", "Front door locked"},
	},
	{
		Name:       "morning",
		LightOn:    true,
		Brightness: 90,
		Target:     23.0,
		DoorState:  "unlocked",
		Actions:    []string{"Living room light on at 90%", "Temperature set to 23°C", "Front door unlocked"},
	},
	{
		Name:      "away",
		Target:    15.0,
		DoorState: "locked",
		Actions:   []string{"Light turned off", "Temperature lowered to 15°C", "Front door locked"},
	},
}

// SceneNames lists the available presets.
func SceneNames() []string {
	out := make([]string, len(scenes))
	for i, sc := range scenes {
		out[i] = sc.Name
	}
	return out
}

func sceneNames() string {
	return strings.Join(SceneNames(), ", ")
}

func lookupScene(name string) (scene, bool) {
	for _, sc := range scenes {
		if sc.Name == name {
			return sc, true
		}
	}
	return scene{}, false
}

func (sc scene) apply(d *Devices) {
	if sc.LightOn {
		d.Light.State = "on"
	} else {
		d.Light.State = "off"
	}
	if sc.Brightness > 0 {
		d.Light.Brightness = sc.Brightness
	}
	// Scenes bypass the 16-30 bound; "away" sets 15.
	d.Thermostat.TargetTemperature = sc.Target
	d.FrontDoor.State = sc.DoorState
}

func (sc scene) summary() string {
	return "🎬 Scene '" + sc.Name + "' activated!\n✅ " + strings.Join(sc.Actions, "\n✅ ")
}
