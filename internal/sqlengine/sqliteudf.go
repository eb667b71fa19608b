package sqlengine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/sqlflow/sqlflow"
)

// registerSQLiteUDF reaches through database/sql's Conn.Raw escape hatch to
// call mattn/go-sqlite3's RegisterFunc on the underlying driver connection.
func registerSQLiteUDF(db *sql.DB, name string, fn any) error {
	ctx := context.Background()

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: sqlengine: acquire conn for udf %s: %v", sqlflow.ErrDatabase, name, err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection type %T", driverConn)
		}

		return sc.RegisterFunc(name, fn, true)
	})
	if err != nil {
		return fmt.Errorf("%w: sqlengine: register udf %s: %v", sqlflow.ErrDatabase, name, err)
	}

	return nil
}
