package wizard

// Step names the screens of the quotation wizard. The values are the
// same strings mirrored into the route's "step" query parameter.
type Step string

const (
	StepInsuranceCategory    Step = "insurance-category"
	StepMotorInsuranceType   Step = "motor-insurance-type"
	StepSelectCompensation   Step = "select-compensation"
	StepVehicleDetails       Step = "vehicle-details"
	StepVehicleDetails2      Step = "vehicle-details-2"
	StepCarPhotos            Step = "car-photos"
	StepCompareQuotes        Step = "compare-quotes"
	StepHomeInsuranceType    Step = "home-insurance-type"
	StepHomeInsuranceOptions Step = "home-insurance-options"
	StepLifeInsuranceType    Step = "life-insurance-type"
	StepLifeInsuranceOptions Step = "life-insurance-options"
)

// backOf is a fixed predecessor map, not a history stack: repeated
// back-navigation is deterministic regardless of how the user arrived.
var backOf = map[Step]Step{
	StepInsuranceCategory:    StepInsuranceCategory,
	StepMotorInsuranceType:   StepInsuranceCategory,
	StepSelectCompensation:   StepMotorInsuranceType,
	StepVehicleDetails:       StepSelectCompensation,
	StepVehicleDetails2:      StepVehicleDetails,
	StepCarPhotos:            StepVehicleDetails2,
	StepCompareQuotes:        StepCarPhotos,
	StepHomeInsuranceType:    StepInsuranceCategory,
	StepHomeInsuranceOptions: StepHomeInsuranceType,
	StepLifeInsuranceType:    StepInsuranceCategory,
	StepLifeInsuranceOptions: StepLifeInsuranceType,
}

// BackOf returns the fixed predecessor of a step.
func BackOf(s Step) Step {
	if p, ok := backOf[s]; ok {
		return p
	}
	return StepInsuranceCategory
}

// ParseStep maps a route value to a step, reporting whether it is a
// recognized step name.
func ParseStep(s string) (Step, bool) {
	step := Step(s)
	_, ok := backOf[step]
	return step, ok
}
