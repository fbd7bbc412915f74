package generator

import "github.com/mmrzaf/taxgen/internal/record"

// Field names the columns of an identity record.
type Field string

const (
	TaxpayerID   Field = "TaxpayerID"
	FirstName    Field = "FirstName"
	MiddleName   Field = "MiddleName"
	LastName     Field = "LastName"
	MaidenName   Field = "MaidenName"
	Gender       Field = "Gender"
	Ethnicity    Field = "Ethnicity"
	Age          Field = "Age"
	BirthMonth   Field = "BirthMonth"
	BirthDay     Field = "BirthDay"
	BirthYear    Field = "BirthYear"
	StreetNumber Field = "StreetNumber"
	StreetName   Field = "StreetName"
	Apartment    Field = "Apartment"
	City         Field = "City"
	State        Field = "State"
	Zip          Field = "Zip"
	AreaCode     Field = "AreaCode"
	Phone        Field = "Phone"
	Email        Field = "Email"
	UniqueLabel  Field = "UniqueLabel"
)

var IdentitySchema = record.NewSchema("identity",
	TaxpayerID, FirstName, MiddleName, LastName, MaidenName, Gender, Ethnicity,
	Age, BirthMonth, BirthDay, BirthYear,
	StreetNumber, StreetName, Apartment, City, State, Zip,
	AreaCode, Phone, Email,
)

var LabeledIdentitySchema = IdentitySchema.Extend("identity_labeled", UniqueLabel)

type Record = record.Record[Field]
