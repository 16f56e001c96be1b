package postgis

const (
	createFirstAgg = `CREATE OR REPLACE FUNCTION public.first_agg (anyelement, anyelement)
RETURNS anyelement LANGUAGE SQL IMMUTABLE STRICT AS $$
	SELECT $1;
$$`

	createFirstAggregate = `CREATE OR REPLACE AGGREGATE public.FIRST (
	sfunc    = public.first_agg,
	basetype = anyelement,
	stype    = anyelement
)`

	// TileBBox(z, x, y, srid) is the EPSG:3857 envelope of a tile,
	// transformed to srid when it differs.
	createTileBBox = `CREATE OR REPLACE FUNCTION TileBBox (z int, x int, y int, srid int = 3857)
RETURNS geometry
LANGUAGE plpgsql IMMUTABLE AS
$func$
DECLARE
	max numeric := 20037508.34;
	res numeric := (max*2)/(2^z);
	bbox geometry;
BEGIN
	bbox := ST_MakeEnvelope(
		-max + (x * res),
		max - (y * res),
		-max + (x * res) + res,
		max - (y * res) - res,
		3857
	);
	IF srid = 3857 THEN
		RETURN bbox;
	ELSE
		RETURN ST_Transform(bbox, srid);
	END IF;
END;
$func$`

	// TileDoubleBBox covers the tile and its right and lower neighbours.
	createTileDoubleBBox = `CREATE OR REPLACE FUNCTION TileDoubleBBox (z int, x int, y int, srid int = 3857)
RETURNS geometry
LANGUAGE plpgsql IMMUTABLE AS
$func$
DECLARE
	max numeric := 20037508.34;
	res numeric := (max*2)/(2^z);
	bbox geometry;
BEGIN
	bbox := ST_MakeEnvelope(
		-max + (x * res),
		max - (y * res),
		-max + (x * res) + res * 2,
		max - (y * res) - res * 2,
		3857
	);
	IF srid = 3857 THEN
		RETURN bbox;
	ELSE
		RETURN ST_Transform(bbox, srid);
	END IF;
END;
$func$`
)
