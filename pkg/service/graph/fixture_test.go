package graph

import "github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"

func odataerrorsFixture(code, message string, status int) error {
	mainErr := odataerrors.NewMainError()
	mainErr.SetCode(&code)
	mainErr.SetMessage(&message)

	err := odataerrors.NewODataError()
	err.SetErrorEscaped(mainErr)
	err.ResponseStatusCode = status
	return err
}
