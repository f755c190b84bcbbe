package services

import "notebox/repositories"

// TxManager scopes a unit of work to one database transaction. The handle
// passed to fn is committed or rolled back before WithTransaction returns.
type TxManager = repositories.TxManager
