package quiz

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/worldnet/internal/country"
)

const (
	defaultQuestionCount = 10
	optionCount          = 4
	fallbackCurrency     = "USD"
	fallbackLandmark     = "Famous Monument"
)

// DefaultDifficulties is the points and time limit per tier.
func DefaultDifficulties() map[Difficulty]DifficultySetting {
	return map[Difficulty]DifficultySetting{
		DifficultyEasy:   {Points: 10, TimeLimit: 30},
		DifficultyMedium: {Points: 20, TimeLimit: 20},
		DifficultyHard:   {Points: 30, TimeLimit: 15},
	}
}

// DefaultDifficultyWeights draws 40% easy, 35% medium, 25% hard.
func DefaultDifficultyWeights() []DifficultyWeight {
	return []DifficultyWeight{
		{Difficulty: DifficultyEasy, Weight: 0.40},
		{Difficulty: DifficultyMedium, Weight: 0.35},
		{Difficulty: DifficultyHard, Weight: 0.25},
	}
}

// DefaultRegions is the distractor pool for location questions.
func DefaultRegions() []string {
	return []string{"Africa", "Asia", "Europe", "North America", "South America", "Oceania"}
}

// DefaultLandmarks maps ISO codes to a well-known landmark.
func DefaultLandmarks() map[string]string {
	return map[string]string{
		"FR": "Eiffel Tower",
		"US": "Statue of Liberty",
		"CN": "Great Wall",
		"IN": "Taj Mahal",
		"IT": "Colosseum",
		"PE": "Machu Picchu",
		"EG": "Pyramids",
		"BR": "Christ the Redeemer",
		"GB": "Big Ben",
		"JP": "Mount Fuji",
	}
}

// EngineConfig holds the tunables of an Engine. Zero values fall back to defaults.
type EngineConfig struct {
	Rand              *rand.Rand
	Difficulties      map[Difficulty]DifficultySetting
	DifficultyWeights []DifficultyWeight
	Regions           []string
	Landmarks         map[string]string
	Now               func() time.Time
	NewID             func() string
}

// Engine builds questions and scores sessions. Safe for concurrent use;
// sessions themselves are not.
type Engine struct {
	rnd          *rand.Rand
	difficulties map[Difficulty]DifficultySetting
	weights      []DifficultyWeight
	regions      []string
	landmarks    map[string]string
	now          func() time.Time
	newID        func() string
	mu           sync.Mutex // guards rnd
}

// NewEngine creates a quiz engine.
func NewEngine(cfg EngineConfig) *Engine {
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	difficulties := cfg.Difficulties
	if len(difficulties) == 0 {
		difficulties = DefaultDifficulties()
	}
	weights := cfg.DifficultyWeights
	if len(weights) == 0 {
		weights = DefaultDifficultyWeights()
	}
	regions := cfg.Regions
	if len(regions) == 0 {
		regions = DefaultRegions()
	}
	landmarks := cfg.Landmarks
	if landmarks == nil {
		landmarks = DefaultLandmarks()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Engine{
		rnd:          rnd,
		difficulties: difficulties,
		weights:      weights,
		regions:      regions,
		landmarks:    landmarks,
		now:          now,
		newID:        newID,
	}
}

// GenerateQuestions builds count questions, cycling through QuestionTypes.
// A count of zero or less uses the default of 10.
func (e *Engine) GenerateQuestions(countries []country.Country, count int) ([]Question, error) {
	if len(countries) == 0 {
		return nil, ErrNoCountries
	}
	if count <= 0 {
		count = defaultQuestionCount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	questions := make([]Question, 0, count)
	for i := range count {
		qType := QuestionTypes[i%len(QuestionTypes)]
		difficulty := e.randomDifficulty()
		c := countries[e.rnd.IntN(len(countries))]

		q, err := e.createQuestion(qType, c, countries, difficulty)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// createQuestion must be called with e.mu held.
func (e *Engine) createQuestion(qType QuestionType, c country.Country, all []country.Country, difficulty Difficulty) (Question, error) {
	setting := e.difficulties[difficulty]
	q := Question{
		ID:         e.newID(),
		Type:       qType,
		Difficulty: difficulty,
		Points:     setting.Points,
		TimeLimit:  setting.TimeLimit,
	}

	switch qType {
	case TypeCapital:
		q.Prompt = fmt.Sprintf("What is the capital of %s?", c.Name)
		q.CorrectAnswer = c.Capital
		q.Options = e.options(c.Capital, collect(all, func(o country.Country) string { return o.Capital }))
		q.Explanation = fmt.Sprintf("%s is the capital of %s.", c.Capital, c.Name)

	case TypePopulation:
		q.Prompt = fmt.Sprintf("Which country has a population of approximately %s?", formatPopulation(c.Population))
		q.CorrectAnswer = c.Name
		q.Options = e.countryOptions(c, all)
		q.Explanation = fmt.Sprintf("%s has a population of %s.", c.Name, formatPopulation(c.Population))

	case TypeFlag:
		if c.Flag != "" {
			q.Prompt = fmt.Sprintf("Which country does this flag belong to? %s", c.Flag)
		} else {
			q.Prompt = fmt.Sprintf("What is the flag of %s?", c.Name)
		}
		q.CorrectAnswer = c.Name
		q.Options = e.countryOptions(c, all)
		q.Explanation = fmt.Sprintf("This is the flag of %s.", c.Name)

	case TypeLocation:
		q.Prompt = fmt.Sprintf("In which region is %s located?", c.Name)
		q.CorrectAnswer = c.Region
		q.Options = e.options(c.Region, e.regions)
		q.Explanation = fmt.Sprintf("%s is located in %s.", c.Name, c.Region)

	case TypeCurrency:
		currency := currencyOf(c)
		q.Prompt = fmt.Sprintf("What is the currency of %s?", c.Name)
		q.CorrectAnswer = currency
		q.Options = e.options(currency, collect(all, currencyOf))
		q.Explanation = fmt.Sprintf("%s uses the %s.", c.Name, currency)

	case TypeLandmark:
		landmark := e.landmarkOf(c)
		q.Prompt = fmt.Sprintf("Which famous landmark is located in %s?", c.Name)
		q.CorrectAnswer = landmark
		q.Options = e.options(landmark, e.landmarkPool(all))
		q.Explanation = fmt.Sprintf("%s is located in %s.", landmark, c.Name)

	default:
		return Question{}, fmt.Errorf("%w: %q", ErrUnknownQuestionType, qType)
	}

	return q, nil
}

// randomDifficulty must be called with e.mu held.
func (e *Engine) randomDifficulty() Difficulty {
	var total float64
	for _, w := range e.weights {
		total += w.Weight
	}
	roll := e.rnd.Float64() * total
	for _, w := range e.weights {
		if roll < w.Weight {
			return w.Difficulty
		}
		roll -= w.Weight
	}
	return e.weights[len(e.weights)-1].Difficulty
}

func (e *Engine) landmarkOf(c country.Country) string {
	if c.Landmark != "" {
		return c.Landmark
	}
	if l, ok := e.landmarks[c.Code]; ok {
		return l
	}
	return fallbackLandmark
}

func (e *Engine) landmarkPool(all []country.Country) []string {
	pool := make([]string, 0, len(e.landmarks)+len(all))
	for _, l := range e.landmarks {
		pool = append(pool, l)
	}
	for _, c := range all {
		if c.Landmark != "" {
			pool = append(pool, c.Landmark)
		}
	}
	slices.Sort(pool)
	return pool
}

func currencyOf(c country.Country) string {
	if c.Currency == "" {
		return fallbackCurrency
	}
	return c.Currency
}

func collect(all []country.Country, field func(country.Country) string) []string {
	out := make([]string, 0, len(all))
	for _, c := range all {
		out = append(out, field(c))
	}
	return out
}

func formatPopulation(n int64) string {
	v := float64(n)
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1f billion", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1f million", v/1e6)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// percentage rounds score/total to a whole percent; an empty quiz scores 0.
func percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}
