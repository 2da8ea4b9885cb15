package models

// Part is one row of the local stock table. Tag groups interchangeable or
// related parts so a match can surface its alternatives.
type Part struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Tag         string  `json:"tag" gorm:"size:500;index"`
	BrandPartNo string  `json:"brand_part_no" gorm:"size:255"`
	ItemDesc    string  `json:"item_desc" gorm:"type:text"`
	Price       float64 `json:"price"`
	Qty         int     `json:"qty"`
	PartNumber  string  `json:"part_number" gorm:"size:255;index"`
	Brand       string  `json:"brand" gorm:"size:255"`
	UniqueValue string  `json:"unique_value" gorm:"type:text"`
}

// PartResult is the pipeline-facing view of a part, covering both stocked
// rows and catalog-only references.
type PartResult struct {
	PartNumber string   `json:"part_number"`
	Brand      string   `json:"brand"`
	Name       string   `json:"name"`
	Price      *float64 `json:"price"`
	Qty        int      `json:"qty"`
	Tag        string   `json:"tag"`
	Status     string   `json:"status,omitempty"` // "", "out_of_stock", "empty", "error"
}

// Part search status values.
const (
	PartStatusOutOfStock = "out_of_stock"
	PartStatusEmpty      = "empty"
	PartStatusError      = "error"
)
