package sqlinline

const QSelectUserByID = `--sql a2a3d5f1-9c0a-4991-85fe-65cbb88e2e30
select id::text, coalesce(email, ''), credits, credits_total, output_format, default_quality, created_at
from users
where id = $1::uuid;
`

const QSelectUserByIDForUpdate = `--sql 5159ead9-9ea6-44fe-acf1-fb9f85a8aaa1
select id::text, coalesce(email, ''), credits, credits_total, output_format, default_quality, created_at
from users
where id = $1::uuid
for update;
`

const QSelectUserIDByEmail = `--sql 1f55e8fe-c1fc-46a1-8087-1f86162f926e
select id::text
from users
where lower(email) = lower($1);
`

// QAddUserCredits refuses to drive the balance below zero; no row comes back
// when the guard fails.
const QAddUserCredits = `--sql 107870c3-8ec2-46a9-923f-283f5e856a36
update users
set credits = credits + $2,
    updated_at = now()
where id = $1::uuid
  and credits + $2 >= 0
returning credits;
`

// QGrantUserCredits also counts the grant toward the lifetime total.
const QGrantUserCredits = `--sql 3c8e5f0a-7d21-4b6e-9f43-a1d0c2b87e15
update users
set credits = credits + $2,
    credits_total = credits_total + $2,
    updated_at = now()
where id = $1::uuid
returning credits;
`
