// Package game implements the shared puzzle layer that rides on top of the
// duet chat relay: the level catalog, clue assignment, answer checking, and
// the per-participant session state machine.
//
// Both participants run an identical copy of this logic in independent
// processes. Nothing here is arbitrated by the relay server; every decision
// that must match on both sides is made once and transmitted inside an
// Event (see session.go).
package game

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	SiteStrangestloop = "strangestloop"
	SiteUlyssepence   = "ulyssepence"
)

// Initiator reports whether the given site is the one allowed to originate
// the start of a game. Fixed by site identity so the two clients never race.
func Initiator(site string) bool {
	return site == SiteStrangestloop
}

// PartnerSite returns the opposite site identifier.
func PartnerSite(site string) string {
	if site == SiteStrangestloop {
		return SiteUlyssepence
	}
	return SiteStrangestloop
}

type ClueType string

const (
	ClueText  ClueType = "text"
	ClueImage ClueType = "image"
	ClueLink  ClueType = "link"
)

// Clue is a descriptor for one half of a level. Image clues reference a
// source asset plus a transform name; rendering and image processing are
// entirely a front-end concern.
type Clue struct {
	Type        ClueType `json:"type"`
	Value       string   `json:"value,omitempty"`
	DisplayText string   `json:"displayText,omitempty"`
	SourceImage string   `json:"sourceImage,omitempty"`
	ProcessAs   string   `json:"processAs,omitempty"`
	Description string   `json:"description,omitempty"`
}

type Level struct {
	ID               string   `json:"id"`
	Type             string   `json:"type"`
	ShowInstructions bool     `json:"showInstructions"`
	Instructions     string   `json:"instructions"`
	Clues            [2]Clue  `json:"clues"`
	Answer           string   `json:"answer"`
	AcceptedAnswers  []string `json:"acceptedAnswers"`
	Hints            []string `json:"hints,omitempty"`
}

type levelTypeConfig struct {
	showInstructions bool
	instructions     string
}

var levelTypes = map[string]levelTypeConfig{
	"compound_words":      {false, "Combine your clues to form a single word."},
	"word_association":    {false, "What word do both clues point to?"},
	"word_bridge":         {true, "What is the bridge?"},
	"split_image":         {false, "What is this?"},
	"math_relay":          {true, "What is the value of x?"},
	"coordinates":         {true, "What city is this?"},
	"document_extraction": {false, ""},
	"anagram":             {true, "What word completes the anagram?"},
}

func textClue(value string) Clue {
	return Clue{Type: ClueText, Value: value}
}

func linkClue(url, displayText string) Clue {
	return Clue{Type: ClueLink, Value: url, DisplayText: displayText}
}

func imageClue(sourceImage, processAs string) Clue {
	descriptions := map[string]string{
		"slice":     "A random vertical 25% slice from the middle",
		"pixelated": "The full image, heavily pixelated",
	}
	return Clue{
		Type:        ClueImage,
		SourceImage: sourceImage,
		ProcessAs:   processAs,
		Description: descriptions[processAs],
	}
}

func newLevel(levelType, id string, clues [2]Clue, answer string, accepted []string) Level {
	config := levelTypes[levelType]
	return Level{
		ID:               id,
		Type:             levelType,
		ShowInstructions: config.showInstructions,
		Instructions:     config.instructions,
		Clues:            clues,
		Answer:           answer,
		AcceptedAnswers:  accepted,
	}
}

func newSplitImageLevel(difficulty, imageKey, answer string, accepted []string, category string) Level {
	image := fmt.Sprintf("/game/assets/%s.jpg", imageKey)
	level := newLevel(
		"split_image",
		fmt.Sprintf("split-%s-%s", difficulty, imageKey),
		[2]Clue{imageClue(image, "slice"), imageClue(image, "pixelated")},
		answer,
		accepted,
	)
	level.Instructions = fmt.Sprintf("What %s is this?", category)
	return level
}

func wordPool(levelType, idPrefix string, rows [][2]string, answers []string, accepted [][]string) []Level {
	pool := make([]Level, 0, len(rows))
	for i, row := range rows {
		pool = append(pool, newLevel(
			levelType,
			fmt.Sprintf("%s-%d", idPrefix, i+1),
			[2]Clue{textClue(row[0]), textClue(row[1])},
			answers[i],
			accepted[i],
		))
	}
	return pool
}

func coordinatePool(idPrefix string, rows [][2]string, answers []string, accepted [][]string, instructions string) []Level {
	pool := make([]Level, 0, len(rows))
	for i, row := range rows {
		level := newLevel(
			"coordinates",
			fmt.Sprintf("%s-%d", idPrefix, i+1),
			[2]Clue{textClue("Latitude: " + row[0]), textClue("Longitude: " + row[1])},
			answers[i],
			accepted[i],
		)
		if instructions != "" {
			level.Instructions = instructions
		}
		pool = append(pool, level)
	}
	return pool
}

func documentPool(idPrefix string, rows [][3]string, answers []string, accepted [][]string) []Level {
	pool := make([]Level, 0, len(rows))
	for i, row := range rows {
		pool = append(pool, newLevel(
			"document_extraction",
			fmt.Sprintf("%s-%d", idPrefix, i+1),
			[2]Clue{linkClue(row[0], row[1]), textClue(row[2])},
			answers[i],
			accepted[i],
		))
	}
	return pool
}

// Fifteen level slots, three difficulty tiers across five puzzle types.
// Each slot draws one variant from its pool when a game starts.
var levelPools = [][]Level{
	// 1: easy compound words
	wordPool("compound_words", "compound-easy",
		[][2]string{{"pan", "cake"}, {"back", "yard"}, {"fire", "place"}, {"out", "side"}, {"cart", "wheel"}},
		[]string{"pancake", "backyard", "fireplace", "outside", "cartwheel"},
		[][]string{
			{"pancake"},
			{"backyard", "back yard"},
			{"fireplace", "fire place"},
			{"outside", "out side"},
			{"cartwheel", "cart wheel"},
		}),
	// 2: easy split image (animals)
	{
		newSplitImageLevel("easy", "frog", "frog", []string{"frog"}, "animal"),
		newSplitImageLevel("easy", "elephant", "elephant", []string{"elephant"}, "animal"),
		newSplitImageLevel("easy", "sheep", "sheep", []string{"sheep", "lamb"}, "animal"),
	},
	// 3: easy math relay
	wordPool("math_relay", "math-easy",
		[][2]string{{"x + y = 10", "x − y = 4"}, {"x + y = 8", "x − y = 2"}, {"x + y = 15", "x − y = 3"}},
		[]string{"7", "5", "9"},
		[][]string{
			{"7", "seven", "x=7", "x = 7"},
			{"5", "five", "x=5", "x = 5"},
			{"9", "nine", "x=9", "x = 9"},
		}),
	// 4: easy coordinates (major cities)
	coordinatePool("coords-easy",
		[][2]string{
			{"48.8566° N", "2.3522° E"},
			{"35.6762° N", "139.6503° E"},
			{"40.7128° N", "74.0060° W"},
			{"33.8688° S", "151.2093° E"},
			{"51.5074° N", "0.1278° W"},
		},
		[]string{"paris", "tokyo", "new york", "sydney", "london"},
		[][]string{
			{"paris"},
			{"tokyo"},
			{"new york", "nyc", "new york city"},
			{"sydney"},
			{"london"},
		},
		""),
	// 5: easy document extraction
	documentPool("doc-easy",
		[][3]string{
			{"https://paulgraham.com/foundermode.html", "paulgraham.com/foundermode.html", "3rd paragraph, 5th word"},
			{"https://en.wikipedia.org/wiki/Earth", "wikipedia.org/wiki/Earth", "1st sentence, 3rd word"},
			{"https://en.wikipedia.org/wiki/Moon", "wikipedia.org/wiki/Moon", "1st sentence, 8th word"},
		},
		[]string{"event", "third", "natural"},
		[][]string{{"event"}, {"third"}, {"natural"}}),
	// 6: medium word association (position + object = part)
	wordPool("word_association", "word-assoc-medium",
		[][2]string{{"bottom", "tree"}, {"center", "apple"}, {"middle", "donut"}, {"edge", "bread"}, {"outside", "egg"}},
		[]string{"roots", "core", "hole", "crust", "shell"},
		[][]string{
			{"roots", "root"},
			{"core"},
			{"hole"},
			{"crust"},
			{"shell", "eggshell"},
		}),
	// 7: medium split image (food)
	{
		newSplitImageLevel("medium", "apple", "apple", []string{"apple", "apples"}, "food"),
		newSplitImageLevel("medium", "eggs", "eggs", []string{"eggs", "egg"}, "food"),
		newSplitImageLevel("medium", "honey", "honey", []string{"honey"}, "food"),
	},
	// 8: medium math relay (coefficients)
	wordPool("math_relay", "math-medium",
		[][2]string{{"2x + y = 11", "x + y = 7"}, {"3x + y = 14", "x + y = 6"}, {"2x + y = 17", "x − y = 1"}},
		[]string{"4", "4", "6"},
		[][]string{
			{"4", "four", "x=4", "x = 4"},
			{"4", "four", "x=4", "x = 4"},
			{"6", "six", "x=6", "x = 6"},
		}),
	// 9: medium coordinates (famous landmarks)
	coordinatePool("coords-medium",
		[][2]string{
			{"48.8584° N", "2.2945° E"},
			{"40.6892° N", "74.0445° W"},
			{"27.1751° N", "78.0421° E"},
			{"41.8902° N", "12.4922° E"},
			{"51.5007° N", "0.1246° W"},
		},
		[]string{"eiffel tower", "statue of liberty", "taj mahal", "colosseum", "big ben"},
		[][]string{
			{"eiffel tower", "eiffel"},
			{"statue of liberty", "liberty"},
			{"taj mahal", "taj"},
			{"colosseum", "coliseum"},
			{"big ben"},
		},
		"What landmark is this?"),
	// 10: medium document extraction (site essays)
	documentPool("doc-medium",
		[][3]string{
			{"https://strangestloop.io/essays/the-strangest-loop", "strangestloop.io/essays/the-strangest-loop", "Paragraph 2, last word"},
			{"https://strangestloop.io/essays/life-as-a-puzzle", "strangestloop.io/essays/life-as-a-puzzle", "Paragraph 6, last word"},
			{"https://ulyssepence.com/blog/post/friends-not-critics", "ulyssepence.com/blog/post/friends-not-critics", "1st paragraph, last word"},
			{"https://ulyssepence.com/blog/post/the-path-to-greatness", "ulyssepence.com/blog/post/the-path-to-greatness", "Last word of the essay"},
			{"https://ulyssepence.com/blog/post/bootstrapping-empathy", "ulyssepence.com/blog/post/bootstrapping-empathy", "Last paragraph, last word"},
		},
		[]string{"contradiction", "spiritually", "persuasive", "begins", "connection"},
		[][]string{{"contradiction"}, {"spiritually"}, {"persuasive"}, {"begins"}, {"connection"}}),
	// 11: hard word bridge (A + answer, answer + B)
	wordPool("word_bridge", "word-bridge-hard",
		[][2]string{{"peanut", "fly"}, {"base", "room"}, {"sweet", "beat"}, {"note", "worm"}, {"paper", "yard"}},
		[]string{"butter", "ball", "heart", "book", "back"},
		[][]string{{"butter"}, {"ball"}, {"heart"}, {"book"}, {"back"}}),
	// 12: hard split image (vehicles)
	{
		newSplitImageLevel("hard", "helicopter", "helicopter", []string{"helicopter", "chopper"}, "vehicle"),
		newSplitImageLevel("hard", "motorcycle", "motorcycle", []string{"motorcycle", "motorbike", "bike"}, "vehicle"),
		newSplitImageLevel("hard", "sailboat", "sailboat", []string{"sailboat", "sail boat", "boat", "yacht"}, "vehicle"),
	},
	// 13: hard math relay (full elimination)
	wordPool("math_relay", "math-hard",
		[][2]string{{"3x + 2y = 19", "2x + 3y = 16"}, {"2x + 3y = 18", "3x + 2y = 17"}, {"4x + y = 17", "x + 3y = 18"}},
		[]string{"5", "3", "3"},
		[][]string{
			{"5", "five", "x=5", "x = 5"},
			{"3", "three", "x=3", "x = 3"},
			{"3", "three", "x=3", "x = 3"},
		}),
	// 14: hard coordinates (natural and historical sites, DMS format)
	coordinatePool("coords-hard",
		[][2]string{
			{"36° 3' 19\" N", "112° 7' 19\" W"},
			{"13° 9' 48\" S", "72° 32' 44\" W"},
			{"51° 10' 44\" N", "1° 49' 34\" W"},
			{"29° 58' 45\" N", "31° 8' 3\" E"},
			{"27° 59' 17\" N", "86° 55' 31\" E"},
		},
		[]string{"grand canyon", "machu picchu", "stonehenge", "great pyramid", "mount everest"},
		[][]string{
			{"grand canyon"},
			{"machu picchu", "macchu picchu", "machu pichu"},
			{"stonehenge"},
			{"great pyramid", "pyramid of giza", "giza", "pyramids"},
			{"mount everest", "everest", "mt everest"},
		},
		"What place is this?"),
	// 15: hard anagrams (clue phrase + given word)
	wordPool("anagram", "anagram-hard",
		[][2]string{{"banker brood", "board"}, {"moon starer", "rates"}, {"las vegas", "gas"}},
		[]string{"broken", "moron", "salve"},
		[][]string{{"broken"}, {"moron"}, {"salve"}}),
}

// LevelCount returns the number of level slots in a generated set.
func LevelCount() int {
	return len(levelPools)
}

// GenerateLevelSet draws one variant per slot from a seeded generator.
// Both participants must call it with the same seed (transmitted in the
// start-game event) so they end up with an identical set.
func GenerateLevelSet(seed int64) []Level {
	rng := rand.New(rand.NewPCG(uint64(seed), 0))

	set := make([]Level, 0, len(levelPools))
	for _, pool := range levelPools {
		set = append(set, pool[rng.IntN(len(pool))])
	}
	return set
}

// CheckAnswer reports whether a chat message contains one of the level's
// accepted answers, case-insensitively.
func CheckAnswer(message string, level Level) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))

	for _, answer := range level.AcceptedAnswers {
		if strings.Contains(normalized, strings.ToLower(answer)) {
			return true
		}
	}
	return false
}

// AssignClues returns the clue pair for (strangestloop, ulyssepence) in
// that order, swapped when the transmitted swap decision says so.
func AssignClues(level Level, swap bool) (Clue, Clue) {
	if swap {
		return level.Clues[1], level.Clues[0]
	}
	return level.Clues[0], level.Clues[1]
}
