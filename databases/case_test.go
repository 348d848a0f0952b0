package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/courtroom-api/config"
	"github.com/linesmerrill/courtroom-api/databases"
	"github.com/linesmerrill/courtroom-api/databases/mocks"
	"github.com/linesmerrill/courtroom-api/models"
)

func TestNewCaseDatabase(t *testing.T) {
	_ = os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	_ = os.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	caseDB := databases.NewCaseDatabase(db)

	assert.NotEmpty(t, caseDB)
}

func TestCaseDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Case)
		(*arg).Title = "mocked-case"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "cases").Return(collectionHelper)

	caseDba := databases.NewCaseDatabase(dbHelper)

	legalCase, err := caseDba.FindOne(context.Background(), bson.M{"error": true})

	assert.Empty(t, legalCase)
	assert.EqualError(t, err, "mocked-error")

	legalCase, err = caseDba.FindOne(context.Background(), bson.M{"error": false})

	assert.Equal(t, &models.Case{Title: "mocked-case"}, legalCase)
	assert.NoError(t, err)
}

func TestCaseDatabase_Find(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorCorrect := &mocks.CursorHelper{}
	cursorErr := &mocks.CursorHelper{}

	cursorErr.On("Decode", mock.Anything).Return(errors.New("mocked-error"))
	cursorCorrect.On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Case)
		*arg = []models.Case{{Title: "mocked-case"}}
	})

	collectionHelper.On("Find", context.Background(), bson.M{"error": true}).Return(cursorErr, nil)
	collectionHelper.On("Find", context.Background(), bson.M{"error": false}).Return(cursorCorrect, nil)
	collectionHelper.On("Find", context.Background(), bson.M{"unreachable": true}).Return(nil, errors.New("server selection error"))
	dbHelper.On("Collection", "cases").Return(collectionHelper)

	caseDba := databases.NewCaseDatabase(dbHelper)

	cases, err := caseDba.Find(context.Background(), bson.M{"error": true})
	assert.Empty(t, cases)
	assert.EqualError(t, err, "mocked-error")

	cases, err = caseDba.Find(context.Background(), bson.M{"unreachable": true})
	assert.Empty(t, cases)
	assert.EqualError(t, err, "server selection error")

	cases, err = caseDba.Find(context.Background(), bson.M{"error": false})
	assert.Equal(t, []models.Case{{Title: "mocked-case"}}, cases)
	assert.NoError(t, err)
}

func TestCaseDatabase_UpdateOne(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	update := bson.M{"$set": bson.M{"description": "new"}}
	collectionHelper.On("UpdateOne", context.Background(), bson.M{"_id": "a"}, update).Return(int64(1), nil)
	dbHelper.On("Collection", "cases").Return(collectionHelper)

	matched, err := databases.NewCaseDatabase(dbHelper).UpdateOne(context.Background(), bson.M{"_id": "a"}, update)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), matched)
}
