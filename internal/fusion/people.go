package fusion

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

const personLabel = "person"

// PersonStub identifies one person before equipment is evaluated.
type PersonStub struct {
	ID          string
	Index       int // position in the report, 0-based
	Description string
}

// EnumeratePeople numbers every person object 1..N in detector order.
func EnumeratePeople(objects []models.DetectedObject) []PersonStub {
	people := make([]PersonStub, 0)

	for _, obj := range objects {
		if !strings.EqualFold(obj.Label, personLabel) {
			continue
		}

		n := len(people) + 1
		people = append(people, PersonStub{
			ID:          strconv.Itoa(n),
			Index:       n - 1,
			Description: fmt.Sprintf("person %d", n),
		})
	}

	return people
}
