package service

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
)

// Probabilities of the optional fields on a synthesized address.
const (
	address2Probability         = 0.3
	companyProbability          = 0.2
	alternativePhoneProbability = 0.1
)

// addressFaker synthesizes US addresses for guest orders. It is not safe for
// concurrent use.
type addressFaker struct {
	faker *gofakeit.Faker
	rng   *rand.Rand
}

func newAddressFaker(rng *rand.Rand) *addressFaker {
	return &addressFaker{faker: gofakeit.New(rng.Int64()), rng: rng}
}

// New returns an address stamped with the owning order's times.
func (f *addressFaker) New(createdAt, updatedAt time.Time) *domain.Address {
	a := &domain.Address{
		FirstName: f.faker.FirstName(),
		LastName:  f.faker.LastName(),
		Address1:  f.faker.Street(),
		City:      f.faker.City(),
		Zipcode:   f.faker.Zip(),
		Phone:     f.faker.Phone(),
		StateName: f.faker.State(),
		CountryID: domain.USCountryID,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if f.rng.Float64() < address2Probability {
		v := fmt.Sprintf("%s %d", f.faker.RandomString([]string{"Apt.", "Suite", "Unit"}), f.faker.Number(1, 999))
		a.Address2 = &v
	}
	if f.rng.Float64() < companyProbability {
		v := f.faker.Company()
		a.Company = &v
	}
	if f.rng.Float64() < alternativePhoneProbability {
		v := f.faker.Phone()
		a.AlternativePhone = &v
	}
	return a
}
