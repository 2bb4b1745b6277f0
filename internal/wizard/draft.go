package wizard

// PhotoSlot names one of the fixed photo positions collected at the
// car-photos step.
type PhotoSlot string

const (
	PhotoFront         PhotoSlot = "front"
	PhotoBack          PhotoSlot = "back"
	PhotoLeft          PhotoSlot = "left"
	PhotoRight         PhotoSlot = "right"
	PhotoEngine        PhotoSlot = "engine"
	PhotoChassisNumber PhotoSlot = "chassis_number"
	PhotoLibre         PhotoSlot = "libre"
)

// PhotoSlots lists every slot in display order.
var PhotoSlots = []PhotoSlot{
	PhotoFront, PhotoBack, PhotoLeft, PhotoRight,
	PhotoEngine, PhotoChassisNumber, PhotoLibre,
}

type PhotoState int

const (
	// PhotoEmpty means nothing captured or stored for the slot.
	PhotoEmpty PhotoState = iota
	// PhotoPending is a freshly captured local binary awaiting upload.
	PhotoPending
	// PhotoStored references a photo already uploaded with an earlier
	// draft save; only its remote URL is held, never the binary.
	PhotoStored
)

// Photo is a tagged variant so rehydrated and freshly captured photos
// can never be conflated.
type Photo struct {
	State    PhotoState
	Filename string
	Data     []byte
	URL      string
}

func PendingPhoto(filename string, data []byte) Photo {
	return Photo{State: PhotoPending, Filename: filename, Data: data}
}

func StoredPhoto(url string) Photo {
	return Photo{State: PhotoStored, URL: url}
}

type VehicleDetails struct {
	VehicleType        string  `json:"vehicle_type"`
	VehicleUsage       string  `json:"vehicle_usage"`
	NumberOfPassengers int     `json:"number_of_passengers"`
	CarPrice           float64 `json:"car_price"`
	Goods              string  `json:"goods"`
}

type ResidenceAddress struct {
	Region      string `json:"region"`
	Zone        string `json:"zone"`
	Woreda      string `json:"woreda"`
	Kebele      string `json:"kebele"`
	HouseNumber string `json:"house_number"`
}

type VehicleAttributes struct {
	PlateNumber       string  `json:"plate_number"`
	ChassisNumber     string  `json:"chassis_number"`
	EngineNumber      string  `json:"engine_number"`
	Make              string  `json:"make"`
	Model             string  `json:"model"`
	YearOfManufacture int     `json:"year_of_manufacture"`
	EstimatedValue    float64 `json:"estimated_value"`
}

// FormDraft is the single mutable form state the wizard accumulates
// across steps. Photos are excluded from JSON so the durable scratch
// copy never tries to serialize binaries.
type FormDraft struct {
	InsuranceTypeID   int                 `json:"insurance_type_id"`
	CoverageTypeID    int                 `json:"coverage_type_id"`
	CoverageAmount    float64             `json:"coverage_amount"`
	VehicleDetails    VehicleDetails      `json:"vehicle_details"`
	ResidenceAddress  ResidenceAddress    `json:"current_residence_address"`
	VehicleAttributes VehicleAttributes   `json:"vehicle_attributes"`
	Photos            map[PhotoSlot]Photo `json:"-"`
	DraftID           int                 `json:"draft_id,omitempty"`
}

// NewFormDraft returns the all-empty defaults used when the wizard is
// entered fresh.
func NewFormDraft() *FormDraft {
	d := &FormDraft{Photos: make(map[PhotoSlot]Photo, len(PhotoSlots))}
	for _, slot := range PhotoSlots {
		d.Photos[slot] = Photo{}
	}
	return d
}

func (d *FormDraft) Photo(slot PhotoSlot) Photo {
	return d.Photos[slot]
}

func (d *FormDraft) SetPhoto(slot PhotoSlot, p Photo) {
	if d.Photos == nil {
		d.Photos = make(map[PhotoSlot]Photo, len(PhotoSlots))
	}
	d.Photos[slot] = p
}

// HasRequiredPhoto reports whether at least one of the front,
// chassis-number or libre slots is present (pending or stored).
func (d *FormDraft) HasRequiredPhoto() bool {
	for _, slot := range []PhotoSlot{PhotoFront, PhotoChassisNumber, PhotoLibre} {
		if d.Photos[slot].State != PhotoEmpty {
			return true
		}
	}
	return false
}
