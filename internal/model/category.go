package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Category is the business category of a point of interest.
type Category string

const (
	CategoryKoreanFood   Category = "korean_food"
	CategoryChineseFood  Category = "chinese_food"
	CategoryJapaneseFood Category = "japanese_food"
	CategoryWesternFood  Category = "western_food"
	CategoryCafe         Category = "cafe"
	CategoryBar          Category = "bar"
	CategoryConvenience  Category = "convenience"
	CategoryPharmacy     Category = "pharmacy"
	CategoryHairSalon    Category = "hair_salon"
	CategoryGym          Category = "gym"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryKoreanFood,
	CategoryChineseFood,
	CategoryJapaneseFood,
	CategoryWesternFood,
	CategoryCafe,
	CategoryBar,
	CategoryConvenience,
	CategoryPharmacy,
	CategoryHairSalon,
	CategoryGym,
}

// ParseCategory converts a string into a Category. The match is exact; an
// unknown value yields ErrInvalidCategory naming the allowed values.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	allowed := make([]string, len(Categories))
	for i, c := range Categories {
		allowed[i] = string(c)
	}
	return "", eris.Wrapf(ErrInvalidCategory, "%q (allowed: %s)", s, strings.Join(allowed, ", "))
}

// Valid reports whether c is a member of the catalog.
func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}
