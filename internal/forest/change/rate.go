package change

import "github.com/banshee-data/forest.report/internal/forest"

// Rate returns the number of true cells in mask and that count divided by
// yearsBetween. A non-positive interval yields a zero rate, not an error.
func Rate(mask *forest.Mask, yearsBetween float64) (annualRate, totalArea float64, err error) {
	return RateScaled(mask, yearsBetween, forest.UnitPixels)
}

// RateScaled is Rate with the mask area expressed in unit.
func RateScaled(mask *forest.Mask, yearsBetween float64, unit forest.AreaUnit) (annualRate, totalArea float64, err error) {
	if err := mask.Validate(); err != nil {
		return 0, 0, err
	}
	totalArea, err = forest.MaskArea(mask, unit)
	if err != nil {
		return 0, 0, err
	}
	return annualize(totalArea, yearsBetween), totalArea, nil
}

func annualize(area, years float64) float64 {
	if years > 0 {
		return area / years
	}
	return 0
}
