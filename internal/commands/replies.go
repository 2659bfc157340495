package commands

import (
	_ "embed"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/keshon/server-cat/internal/pet"

	"gopkg.in/yaml.v3"
)

//go:embed strings.yaml
var defaultReplies []byte

// Replies is the bot's reply table. Templates use {{name}} placeholders.
type Replies struct {
	Pet        map[pet.Reaction][]string  `yaml:"pet"`
	Meow       map[pet.Reaction][]string  `yaml:"meow"`
	SpecialPet []string                   `yaml:"special_pet"`
	Mood       map[pet.MoodClass]string   `yaml:"mood"`
	Hunger     map[pet.HungerClass]string `yaml:"hunger"`
	Feed       map[pet.FeedResult]string  `yaml:"feed"`
	MeowBack   []string                   `yaml:"meow_back"`
	Laser      []string                   `yaml:"laser"`
	Treats     ExchangeReplies            `yaml:"treats"`
	Game       GameReplies                `yaml:"game"`
	Settings   SettingsReplies            `yaml:"settings"`
	Twitter    string                     `yaml:"twitter"`
}

type ExchangeReplies struct {
	Ask     string `yaml:"ask"`
	Yes     string `yaml:"yes"`
	No      string `yaml:"no"`
	Timeout string `yaml:"timeout"`
}

type GameReplies struct {
	Ask     string `yaml:"ask"`
	Win     string `yaml:"win"`
	Lose    string `yaml:"lose"`
	Invalid string `yaml:"invalid"`
	Timeout string `yaml:"timeout"`
	Busy    string `yaml:"busy"`
}

type SettingsReplies struct {
	Report         string `yaml:"report"`
	SimulationOn   string `yaml:"simulation_on"`
	SimulationOff  string `yaml:"simulation_off"`
	IntegrationOn  string `yaml:"integration_on"`
	IntegrationOff string `yaml:"integration_off"`
}

// DefaultReplies returns the built-in reply table.
func DefaultReplies() *Replies {
	r, err := ParseReplies(strings.NewReader(string(defaultReplies)))
	if err != nil {
		panic(fmt.Sprintf("commands: embedded strings.yaml: %v", err))
	}
	return r
}

// ParseReplies decodes a YAML reply table. Unknown keys are rejected.
func ParseReplies(r io.Reader) (*Replies, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var out Replies
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode replies: %w", err)
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Replies) validate() error {
	for _, c := range []pet.Reaction{pet.ReactionAngry, pet.ReactionSad, pet.ReactionHappy} {
		if len(r.Pet[c]) == 0 {
			return fmt.Errorf("replies: no pet lines for %q", c)
		}
	}
	for _, c := range []pet.Reaction{pet.ReactionSad, pet.ReactionNeutral, pet.ReactionHappy} {
		if len(r.Meow[c]) == 0 {
			return fmt.Errorf("replies: no meow lines for %q", c)
		}
	}
	for _, c := range []pet.MoodClass{pet.MoodSad, pet.MoodNeutral, pet.MoodHappy} {
		if r.Mood[c] == "" {
			return fmt.Errorf("replies: no mood line for %q", c)
		}
	}
	if r.Hunger[pet.Hungry] == "" || r.Hunger[pet.NotHungry] == "" {
		return fmt.Errorf("replies: hunger lines incomplete")
	}
	if r.Feed[pet.Fed] == "" || r.Feed[pet.RefusedFood] == "" {
		return fmt.Errorf("replies: feed lines incomplete")
	}
	if len(r.SpecialPet) == 0 || len(r.MeowBack) == 0 || len(r.Laser) == 0 {
		return fmt.Errorf("replies: special_pet, meow_back and laser need at least one line")
	}
	for _, t := range []struct{ key, value string }{
		{"treats.ask", r.Treats.Ask},
		{"treats.yes", r.Treats.Yes},
		{"treats.no", r.Treats.No},
		{"treats.timeout", r.Treats.Timeout},
		{"game.ask", r.Game.Ask},
		{"game.win", r.Game.Win},
		{"game.lose", r.Game.Lose},
		{"game.invalid", r.Game.Invalid},
		{"game.timeout", r.Game.Timeout},
		{"game.busy", r.Game.Busy},
		{"settings.report", r.Settings.Report},
		{"settings.simulation_on", r.Settings.SimulationOn},
		{"settings.simulation_off", r.Settings.SimulationOff},
		{"settings.integration_on", r.Settings.IntegrationOn},
		{"settings.integration_off", r.Settings.IntegrationOff},
		{"twitter", r.Twitter},
	} {
		if strings.TrimSpace(t.value) == "" {
			return fmt.Errorf("replies: %s is empty", t.key)
		}
	}
	return nil
}

// expand fills {{key}} placeholders from kv pairs.
func expand(tmpl string, kv ...any) string {
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{{"+fmt.Sprint(kv[i])+"}}", format(kv[i+1]))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func format(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case bool:
		if v {
			return "on"
		}
		return "off"
	default:
		return fmt.Sprint(v)
	}
}
