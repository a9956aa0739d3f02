package model

// BloodType is one of the 8 canonical ABO/Rh groups
type BloodType string

const (
	BloodTypeAPos  BloodType = "A+"
	BloodTypeANeg  BloodType = "A-"
	BloodTypeBPos  BloodType = "B+"
	BloodTypeBNeg  BloodType = "B-"
	BloodTypeABPos BloodType = "AB+"
	BloodTypeABNeg BloodType = "AB-"
	BloodTypeOPos  BloodType = "O+"
	BloodTypeONeg  BloodType = "O-"
)

// BloodTypes lists every valid blood group
var BloodTypes = []BloodType{
	BloodTypeAPos, BloodTypeANeg,
	BloodTypeBPos, BloodTypeBNeg,
	BloodTypeABPos, BloodTypeABNeg,
	BloodTypeOPos, BloodTypeONeg,
}

// compatibleRecipients maps a donor group to every recipient group it may
// serve. The same table is used whether a donor searches for requests or a
// request searches for donors.
var compatibleRecipients = map[BloodType][]BloodType{
	BloodTypeONeg:  {BloodTypeONeg, BloodTypeOPos, BloodTypeANeg, BloodTypeAPos, BloodTypeBNeg, BloodTypeBPos, BloodTypeABNeg, BloodTypeABPos},
	BloodTypeOPos:  {BloodTypeOPos, BloodTypeAPos, BloodTypeBPos, BloodTypeABPos},
	BloodTypeANeg:  {BloodTypeANeg, BloodTypeAPos, BloodTypeABNeg, BloodTypeABPos},
	BloodTypeAPos:  {BloodTypeAPos, BloodTypeABPos},
	BloodTypeBNeg:  {BloodTypeBNeg, BloodTypeBPos, BloodTypeABNeg, BloodTypeABPos},
	BloodTypeBPos:  {BloodTypeBPos, BloodTypeABPos},
	BloodTypeABNeg: {BloodTypeABNeg, BloodTypeABPos},
	BloodTypeABPos: {BloodTypeABPos},
}

// Valid reports whether t is one of the 8 canonical groups.
func (t BloodType) Valid() bool {
	_, ok := compatibleRecipients[t]
	return ok
}

// CompatibleRecipients returns the recipient groups a donor of type t may
// donate to. The returned slice must not be mutated.
func CompatibleRecipients(t BloodType) []BloodType {
	return compatibleRecipients[t]
}

// IsCompatible reports whether a donor of type donor may donate to a
// recipient of type recipient.
func IsCompatible(donor, recipient BloodType) bool {
	for _, r := range compatibleRecipients[donor] {
		if r == recipient {
			return true
		}
	}
	return false
}
