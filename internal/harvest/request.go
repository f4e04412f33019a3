package harvest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

const requestDateLayout = "2006-01-02"

// all selects every known disease or source.
const all = "all"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request is the user-facing form of a harvest, shared by the CLI, the HTTP
// API and the Kafka request listener. Names are parsed leniently and "all"
// selects everything.
type Request struct {
	Diseases   []string `json:"diseases" validate:"required,min=1,dive,required"`
	Sources    []string `json:"sources,omitempty" validate:"omitempty,dive,required"`
	MaxResults int      `json:"max_results_per_source,omitempty" validate:"gte=0,lte=100000"`
	YearsBack  int      `json:"years_back,omitempty" validate:"gte=0,lte=200"`
	From       string   `json:"from,omitempty" validate:"omitempty,datetime=2006-01-02,required_with=To"`
	To         string   `json:"to,omitempty" validate:"omitempty,datetime=2006-01-02,required_with=From"`
}

// Defaults fill the fields a Request leaves empty.
type Defaults struct {
	MaxResultsPerSource int
	YearsBack           int
}

// Query validates r and resolves it into a domain query. An empty source
// list selects every source; without From and To the range is the last
// YearsBack years ending on now.
func (r Request) Query(d Defaults, now time.Time) (domain.Query, error) {
	if err := validate.Struct(r); err != nil {
		return domain.Query{}, validationError(err)
	}

	diseases, err := parseDiseases(r.Diseases)
	if err != nil {
		return domain.Query{}, err
	}
	sources, err := parseSources(r.Sources)
	if err != nil {
		return domain.Query{}, err
	}

	q := domain.Query{
		Diseases:            diseases,
		Sources:             sources,
		MaxResultsPerSource: r.MaxResults,
	}
	if q.MaxResultsPerSource == 0 {
		q.MaxResultsPerSource = d.MaxResultsPerSource
	}

	switch {
	case r.From != "":
		from, _ := time.Parse(requestDateLayout, r.From)
		to, _ := time.Parse(requestDateLayout, r.To)
		q.DateRange = &domain.DateRange{From: from, To: to}
	default:
		years := r.YearsBack
		if years == 0 {
			years = d.YearsBack
		}
		if years > 0 {
			q.DateRange = domain.LastYears(years, now)
		}
	}

	if err := q.Validate(); err != nil {
		return domain.Query{}, err
	}
	return q, nil
}

func parseDiseases(names []string) ([]domain.Disease, error) {
	var out []domain.Disease
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), all) {
			return domain.AllDiseases(), nil
		}
		d, err := domain.ParseDisease(n)
		if err != nil {
			return nil, err
		}
		out = appendUnique(out, d)
	}
	return out, nil
}

func parseSources(names []string) ([]domain.SourceID, error) {
	if len(names) == 0 {
		return domain.AllSources(), nil
	}
	var out []domain.SourceID
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), all) {
			return domain.AllSources(), nil
		}
		s, err := domain.ParseSourceID(n)
		if err != nil {
			return nil, err
		}
		out = appendUnique(out, s)
	}
	return out, nil
}

func appendUnique[T comparable](list []T, v T) []T {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// validationError turns the first validator failure into a domain error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.NewValidationError(toSnake(fe.Field()), fmt.Sprintf("failed %q check", fe.Tag()))
	}
	return domain.NewValidationError("request", err.Error())
}

func toSnake(field string) string {
	switch field {
	case "MaxResults":
		return "max_results_per_source"
	case "YearsBack":
		return "years_back"
	default:
		return strings.ToLower(field)
	}
}
