package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"fileindex/btree"
	"fileindex/database"
	"fileindex/snapshot"
)

var errBadRequest = errors.New("bad request")

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, ErrBadDatabaseID),
		errors.Is(err, database.ErrInvalidName),
		errors.Is(err, btree.ErrInvalidDegree):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrDatabaseNotFound),
		errors.Is(err, database.ErrIndexNotFound),
		errors.Is(err, database.ErrKeyNotFound),
		errors.Is(err, snapshot.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, database.ErrIndexExists),
		errors.Is(err, btree.ErrDuplicateKey),
		errors.Is(err, snapshot.ErrAmbiguous):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func (r *Registry) index(dbID, name string) (*database.Database, *database.Index, error) {
	db, err := r.Get(dbID)
	if err != nil {
		return nil, nil, err
	}
	ix, err := db.GetIndex(name)
	if err != nil {
		return nil, nil, err
	}
	return db, ix, nil
}

// SetupRoutes mounts the index API on router.
func SetupRoutes(router fiber.Router, reg *Registry) {
	router.Get("/databases", func(c *fiber.Ctx) error {
		dbs, err := reg.List()
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"databases": dbs})
	})

	router.Post("/create-db", func(c *fiber.Ctx) error {
		dbID, err := reg.Create()
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "created", "dbID": dbID})
	})

	router.Get("/indexes", func(c *fiber.Ctx) error {
		db, err := reg.Get(c.Query("dbID"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"indexes": db.ListIndexes()})
	})

	router.Post("/create-index", func(c *fiber.Ctx) error {
		var body struct {
			DBID   string `json:"dbID"`
			Name   string `json:"name"`
			Degree int    `json:"degree"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid json")
		}
		if body.Degree == 0 {
			body.Degree = reg.degree
		}

		db, err := reg.Get(body.DBID)
		if err != nil {
			return fail(c, err)
		}
		if err := db.CreateIndex(body.Name, body.Degree); err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "index created", "degree": body.Degree})
	})

	router.Post("/insert", func(c *fiber.Ctx) error {
		var body struct {
			DBID   string `json:"dbID"`
			Index  string `json:"index"`
			Key    string `json:"key"`
			Value  string `json:"value"`
			Unique bool   `json:"unique"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid json")
		}
		if body.Key == "" {
			return badRequest(c, "key required")
		}

		_, ix, err := reg.index(body.DBID, body.Index)
		if err != nil {
			return fail(c, err)
		}
		if body.Unique {
			if err := ix.InsertUnique(body.Key, body.Value); err != nil {
				return fail(c, err)
			}
			return c.JSON(fiber.Map{"status": "inserted"})
		}
		if ix.Insert(body.Key, body.Value) {
			return c.JSON(fiber.Map{"status": "inserted"})
		}
		return c.JSON(fiber.Map{"status": "updated"})
	})

	router.Get("/find", func(c *fiber.Ctx) error {
		key := c.Query("key")
		if key == "" {
			return badRequest(c, "key required")
		}
		_, ix, err := reg.index(c.Query("dbID"), c.Query("index"))
		if err != nil {
			return fail(c, err)
		}
		val, err := ix.Get(key)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"key": key, "value": val})
	})

	router.Get("/entries", func(c *fiber.Ctx) error {
		_, ix, err := reg.index(c.Query("dbID"), c.Query("index"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"entries": ix.Entries()})
	})

	router.Get("/stats", func(c *fiber.Ctx) error {
		name := c.Query("index")
		db, ix, err := reg.index(c.Query("dbID"), name)
		if err != nil {
			return fail(c, err)
		}
		head, err := db.Head(name)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{
			"stats": ix.Stats(),
			"head":  head,
			"dirty": ix.Dirty(),
			"cache": db.CacheMetrics(),
		})
	})

	router.Post("/commit", func(c *fiber.Ctx) error {
		var body struct {
			DBID    string `json:"dbID"`
			Message string `json:"message"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid json")
		}
		db, err := reg.Get(body.DBID)
		if err != nil {
			return fail(c, err)
		}
		snaps, err := db.Commit(c.UserContext(), body.Message)
		if err != nil {
			return fail(c, err)
		}
		if snaps == nil {
			snaps = []snapshot.Snapshot{}
		}
		return c.JSON(fiber.Map{"snapshots": snaps})
	})

	router.Get("/snapshots", func(c *fiber.Ctx) error {
		db, err := reg.Get(c.Query("dbID"))
		if err != nil {
			return fail(c, err)
		}
		snaps, err := db.Snapshots(c.Query("index"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"snapshots": snaps})
	})

	router.Post("/restore", func(c *fiber.Ctx) error {
		var body struct {
			DBID  string `json:"dbID"`
			Index string `json:"index"`
			Ref   string `json:"ref"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid json")
		}
		if body.Ref == "" {
			return badRequest(c, "ref required")
		}
		db, err := reg.Get(body.DBID)
		if err != nil {
			return fail(c, err)
		}
		if err := db.Restore(body.Index, body.Ref); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"status": "restored", "ref": body.Ref})
	})
}
