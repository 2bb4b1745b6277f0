package quotation

import (
	"strconv"
	"strings"

	"github.com/BITS-DEVSEC/im-client/internal/wizard"
)

// photoFieldMap maps local photo slots to the backend's multipart
// field names (nested under vehicle_attributes).
var photoFieldMap = map[wizard.PhotoSlot]string{
	wizard.PhotoFront:         "front_view_photo",
	wizard.PhotoBack:          "back_view_photo",
	wizard.PhotoLeft:          "left_view_photo",
	wizard.PhotoRight:         "right_view_photo",
	wizard.PhotoEngine:        "engine_photo",
	wizard.PhotoChassisNumber: "chassis_number_photo",
	wizard.PhotoLibre:         "libre_photo",
}

// payload is the JSON metadata part of the multipart submission.
type payload struct {
	UserID            int                      `json:"user_id"`
	InsuranceTypeID   int                      `json:"insurance_type_id"`
	CoverageTypeID    int                      `json:"coverage_type_id"`
	Status            string                   `json:"status"`
	FormData          formData                 `json:"form_data"`
	VehicleAttributes wizard.VehicleAttributes `json:"vehicle_attributes"`
}

type formData struct {
	CoverageAmount          float64                 `json:"coverage_amount"`
	VehicleDetails          wizard.VehicleDetails   `json:"vehicle_details"`
	CurrentResidenceAddress wizard.ResidenceAddress `json:"current_residence_address"`
}

// record is the nested shape the backend returns for a stored
// quotation request. The flat draft is re-derived from it; embedded
// objects are the authority for the insurance/coverage ids.
type record struct {
	ID       int    `json:"id"`
	Status   string `json:"status"`
	FormData struct {
		CoverageAmount          float64                 `json:"coverage_amount"`
		VehicleDetails          wizard.VehicleDetails   `json:"vehicle_details"`
		CurrentResidenceAddress wizard.ResidenceAddress `json:"current_residence_address"`
	} `json:"form_data"`
	User struct {
		ID          int    `json:"id"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
	} `json:"user"`
	InsuranceType struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"insurance_type"`
	CoverageType struct {
		ID              int    `json:"id"`
		InsuranceTypeID int    `json:"insurance_type_id"`
		Name            string `json:"name"`
	} `json:"coverage_type"`
	Vehicle struct {
		ID                    int       `json:"id"`
		PlateNumber           string    `json:"plate_number"`
		ChassisNumber         string    `json:"chassis_number"`
		EngineNumber          string    `json:"engine_number"`
		YearOfManufacture     int       `json:"year_of_manufacture"`
		Make                  string    `json:"make"`
		Model                 string    `json:"model"`
		EstimatedValue        flexFloat `json:"estimated_value"`
		FrontViewPhotoURL     string    `json:"front_view_photo_url"`
		BackViewPhotoURL      string    `json:"back_view_photo_url"`
		LeftViewPhotoURL      string    `json:"left_view_photo_url"`
		RightViewPhotoURL     string    `json:"right_view_photo_url"`
		EnginePhotoURL        string    `json:"engine_photo_url"`
		ChassisNumberPhotoURL string    `json:"chassis_number_photo_url"`
		LibrePhotoURL         string    `json:"libre_photo_url"`
	} `json:"vehicle"`
}

// flexFloat tolerates the backend serializing decimals either as JSON
// numbers or as quoted strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func (r *record) photoURL(slot wizard.PhotoSlot) string {
	switch slot {
	case wizard.PhotoFront:
		return r.Vehicle.FrontViewPhotoURL
	case wizard.PhotoBack:
		return r.Vehicle.BackViewPhotoURL
	case wizard.PhotoLeft:
		return r.Vehicle.LeftViewPhotoURL
	case wizard.PhotoRight:
		return r.Vehicle.RightViewPhotoURL
	case wizard.PhotoEngine:
		return r.Vehicle.EnginePhotoURL
	case wizard.PhotoChassisNumber:
		return r.Vehicle.ChassisNumberPhotoURL
	case wizard.PhotoLibre:
		return r.Vehicle.LibrePhotoURL
	}
	return ""
}

// Summary is the listing shape shown when picking a draft to resume.
type Summary struct {
	ID                int
	Status            string
	Make              string
	Model             string
	YearOfManufacture int
	PlateNumber       string
	CoverageTypeName  string
}
